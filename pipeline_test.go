package dbcpool

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingStage struct {
	name    string
	initErr error

	mux    *sync.Mutex
	events *[]string
}

func (s *recordingStage) record(event string) {
	s.mux.Lock()
	defer s.mux.Unlock()

	*s.events = append(*s.events, s.name+":"+event)
}

func (s *recordingStage) Init(_ context.Context) error {
	s.record("init")
	return s.initErr
}

func (s *recordingStage) Run(ctx context.Context) {
	<-ctx.Done()
	s.record("run")
}

func (s *recordingStage) Stop() {
	s.record("stop")
}

func Test_Pipeline(t *testing.T) {
	assert := assert.New(t)

	mux := &sync.Mutex{}
	events := []string{}

	p := NewPipeline()
	p.AddStage(&recordingStage{name: "ingress", mux: mux, events: &events})
	p.AddStage(&recordingStage{name: "egress", mux: mux, events: &events})

	ctx, cancel := context.WithCancel(context.Background())

	assert.NoError(p.Init(ctx))
	assert.Equal([]string{"ingress:init", "egress:init"}, events)

	p.Run(ctx)

	// ignored while running
	p.AddStage(&recordingStage{name: "late", mux: mux, events: &events})

	cancel()
	p.Stop()

	assert.Len(events, 6)
	assert.NotContains(events, "late:init")

	stops := []string{}
	for _, e := range events {
		if e == "ingress:stop" || e == "egress:stop" {
			stops = append(stops, e)
		}
	}
	assert.Equal([]string{"ingress:stop", "egress:stop"}, stops)
}

func Test_Pipeline_initError(t *testing.T) {
	assert := assert.New(t)

	mux := &sync.Mutex{}
	events := []string{}
	errInit := errors.New("init failed")

	p := NewPipeline()
	p.AddStage(&recordingStage{name: "a", initErr: errInit, mux: mux, events: &events})
	p.AddStage(&recordingStage{name: "b", mux: mux, events: &events})

	err := p.Init(context.Background())
	assert.ErrorIs(err, errInit)
	assert.Equal([]string{"a:init"}, events)
}
