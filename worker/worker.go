// Package worker contains the pool of workers used by the egress stages.
package worker

import (
	"context"

	"github.com/squadracorsepolito/dbcpool/internal"
)

// EgressWorker delivers the items of a stage to an external system.
type EgressWorker[InitArgs, In any] interface {
	Init(ctx context.Context, args InitArgs) error
	Deliver(ctx context.Context, task In) error
	Stop(ctx context.Context) error
	SetTelemetry(tel *internal.Telemetry)
}

type EgressWorkerPtr[W, InitArgs, In any] interface {
	*W
	EgressWorker[InitArgs, In]
}
