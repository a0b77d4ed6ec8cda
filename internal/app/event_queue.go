package app

import (
	"github.com/dkeye/Messzola/internal/core"
	"github.com/dkeye/Messzola/internal/metrics"
	"github.com/rs/zerolog/log"
)

// EventQueue is the bounded channel between the store and the fan-out loop.
type EventQueue struct {
	ch      chan core.Event
	metrics *metrics.Metrics
}

func NewEventQueue(size int, m *metrics.Metrics) *EventQueue {
	return &EventQueue{ch: make(chan core.Event, size), metrics: m}
}

// Publish enqueues ev without blocking. A full queue drops the event.
func (q *EventQueue) Publish(ev core.Event) {
	select {
	case q.ch <- ev:
	default:
		q.metrics.EventDropped()
		log.Warn().Str("module", "app.events").Type("event", ev).Msg("event queue full, dropping")
	}
}

func (q *EventQueue) Events() <-chan core.Event { return q.ch }
