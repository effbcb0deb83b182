// Package dbcpool wires the ingress, handler and egress stages
// around a signal pool.
package dbcpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/squadracorsepolito/dbcpool/internal"
)

// Stage is a step of the pipeline.
type Stage interface {
	Init(ctx context.Context) error
	Run(ctx context.Context)
	Stop()
}

type Pipeline struct {
	l *internal.Logger

	stages []Stage

	wg        *sync.WaitGroup
	isRunning bool
}

func NewPipeline() *Pipeline {
	return &Pipeline{
		l: internal.NewLogger("pipeline", "main"),

		stages: []Stage{},

		wg:        &sync.WaitGroup{},
		isRunning: false,
	}
}

// AddStage appends a stage. Stages are stopped in the order they are added,
// so producers go before their consumers.
func (p *Pipeline) AddStage(stage Stage) {
	if p.isRunning {
		return
	}

	p.stages = append(p.stages, stage)
}

func (p *Pipeline) Init(ctx context.Context) error {
	p.l.Info("initializing", "stages", len(p.stages))

	for idx, stage := range p.stages {
		if err := stage.Init(ctx); err != nil {
			return fmt.Errorf("stage %d: %w", idx, err)
		}
	}

	return nil
}

func (p *Pipeline) Run(ctx context.Context) {
	p.isRunning = true

	p.wg.Add(len(p.stages))

	for _, stage := range p.stages {
		go func() {
			defer p.wg.Done()
			stage.Run(ctx)
		}()
	}
}

func (p *Pipeline) Stop() {
	p.l.Info("stopping")
	defer p.l.Info("stopped")

	for _, stage := range p.stages {
		stage.Stop()
	}

	p.wg.Wait()
}
