// Package waits implements the pending-wait scheduler: outstanding wait_for
// requests, polled once per tick until they match, time out, or their node
// is invalidated. Modeled as plain data polled on a timer rather than a
// suspended coroutine, per spec.md §9 ("Polled multi-frame work") — the
// corpus uses the same time.Since-against-a-deadline shape for its
// health-check cache and cron scheduling.
//
// Touched only by the main/tick thread; no synchronization needed
// (spec.md §5).
package waits

import (
	"time"

	"github.com/aesthetic-engine/grb/internal/enginehost"
	"github.com/aesthetic-engine/grb/internal/protocol"
)

// pending is one outstanding wait_for request.
type pending struct {
	id       string
	node     enginehost.Node
	property string
	expected string
	deadline time.Time
	start    time.Time
}

// Scheduler holds all outstanding waits.
type Scheduler struct {
	items []pending
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Add registers a new pending wait. Call sites are expected to have already
// validated node/property presence; Add always creates an entry.
func (s *Scheduler) Add(id string, node enginehost.Node, property, expectedValue string, timeout time.Duration, now time.Time) {
	s.items = append(s.items, pending{
		id:       id,
		node:     node,
		property: property,
		expected: expectedValue,
		deadline: now.Add(timeout),
		start:    now,
	})
}

// Len reports the number of outstanding waits (test/observability helper).
func (s *Scheduler) Len() int { return len(s.items) }

// Tick resolves as many pending waits as it can against engine at the given
// time, returning one response envelope per resolved wait. Unresolved waits
// remain queued for the next Tick.
func (s *Scheduler) Tick(engine enginehost.Engine, now time.Time) []map[string]any {
	if len(s.items) == 0 {
		return nil
	}

	var responses []map[string]any
	remaining := s.items[:0]

	for _, p := range s.items {
		if !p.node.Valid() {
			responses = append(responses, protocol.Err(p.id, "not_found", "node became invalid while waiting", nil))
			continue
		}

		value, ok := engine.GetProperty(p.node, p.property)
		elapsed := now.Sub(p.start).Milliseconds()
		if ok && enginehost.Stringify(value) == p.expected {
			responses = append(responses, protocol.Ok(p.id, map[string]any{
				"matched":    true,
				"elapsed_ms": elapsed,
			}))
			continue
		}

		if !now.Before(p.deadline) {
			responses = append(responses, protocol.Ok(p.id, map[string]any{
				"matched":    false,
				"elapsed_ms": elapsed,
				"last_value": enginehost.Marshal(value),
			}))
			continue
		}

		remaining = append(remaining, p)
	}

	s.items = remaining
	return responses
}
