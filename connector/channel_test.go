package connector

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	bufferCapacity   = 256
	numProducers     = 4
	numConsumers     = 4
	itemsPerProducer = 10_000
)

func Test_Channel_MultipleProducersConsumers(t *testing.T) {
	assert := assert.New(t)

	connector := NewChannel[int](bufferCapacity)

	totalItems := numProducers * itemsPerProducer

	var receivedItems sync.Map
	var receivedCount atomic.Uint64

	var producerWg sync.WaitGroup
	var consumerWg sync.WaitGroup

	consumerWg.Add(numConsumers)
	for range numConsumers {
		go func() {
			defer consumerWg.Done()

			for {
				item, err := connector.Read()
				if err != nil {
					if !errors.Is(err, ErrClosed) {
						t.Errorf("unexpected error: %v", err)
					}
					return
				}

				receivedItems.Store(item, true)
				receivedCount.Add(1)
			}
		}()
	}

	producerWg.Add(numProducers)
	for producerID := range numProducers {
		go func() {
			defer producerWg.Done()

			base := producerID * itemsPerProducer
			for j := range itemsPerProducer {
				if err := connector.Write(base + j); err != nil {
					t.Errorf("producer %d failed to write: %v", producerID, err)
					return
				}
			}
		}()
	}

	producerWg.Wait()
	connector.Close()
	consumerWg.Wait()

	assert.Equal(uint64(totalItems), receivedCount.Load())

	missingItems := 0
	for i := range totalItems {
		if _, ok := receivedItems.Load(i); !ok {
			missingItems++
		}
	}
	assert.Zero(missingItems)
}

func Test_Channel_Close(t *testing.T) {
	assert := assert.New(t)

	connector := NewChannel[string](2)

	assert.NoError(connector.Write("a"))
	assert.NoError(connector.Write("b"))
	assert.Equal(2, connector.Len())

	connector.Close()
	connector.Close()

	assert.ErrorIs(connector.Write("c"), ErrClosed)

	item, err := connector.Read()
	assert.NoError(err)
	assert.Equal("a", item)

	item, err = connector.Read()
	assert.NoError(err)
	assert.Equal("b", item)

	_, err = connector.Read()
	assert.ErrorIs(err, ErrClosed)

	// a blocked reader is released by close
	blocked := NewChannel[int](1)
	done := make(chan error)
	go func() {
		_, err := blocked.Read()
		done <- err
	}()

	blocked.Close()
	assert.ErrorIs(<-done, ErrClosed)
}
