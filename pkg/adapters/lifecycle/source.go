// Package lifecycle exposes pedigree events as a lifecycle.Source so a
// supervisor can react to loads, saves and external store changes.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/pedigree/pkg/core"
)

type eventSource struct {
	events <-chan core.Event
	accept map[core.EventType]bool
	out    chan lifecycle.Event
}

// NewSource creates a lifecycle.Source that re-emits pedigree events. When
// types are given, only events of those types pass.
func NewSource(events <-chan core.Event, types ...core.EventType) lifecycle.Source {
	var accept map[core.EventType]bool
	if len(types) > 0 {
		accept = make(map[core.EventType]bool, len(types))
		for _, t := range types {
			accept[t] = true
		}
	}
	return &eventSource{
		events: events,
		accept: accept,
		out:    make(chan lifecycle.Event),
	}
}

func (s *eventSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *eventSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.events:
				if !ok {
					return nil
				}
				if s.accept != nil && !s.accept[e.Type] {
					continue
				}
				// core.Event implements lifecycle.Event (has String())
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
