// Package message contains the items exchanged by the pipeline stages.
package message

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Message is implemented by every item flowing through a connector.
type Message interface {
	// SetReceiveTime sets the time the message was received.
	SetReceiveTime(receiveTime time.Time)
	// GetReceiveTime returns the time the message was received.
	GetReceiveTime() time.Time

	// SaveSpan saves the trace span for the message.
	SaveSpan(span trace.Span)
	// LoadSpanContext loads the trace of the message
	// into the provided context.
	LoadSpanContext(ctx context.Context) context.Context
}

type embedded struct {
	receiveTime time.Time
	span        trace.SpanContext
}

func (e *embedded) SetReceiveTime(receiveTime time.Time) {
	e.receiveTime = receiveTime
}

func (e *embedded) GetReceiveTime() time.Time {
	return e.receiveTime
}

func (e *embedded) SaveSpan(span trace.Span) {
	e.span = span.SpanContext()
}

func (e *embedded) LoadSpanContext(ctx context.Context) context.Context {
	return trace.ContextWithSpanContext(ctx, e.span)
}

func (e *embedded) reset() {
	e.receiveTime = time.Time{}
	e.span = trace.SpanContext{}
}
