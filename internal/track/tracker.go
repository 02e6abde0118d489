// Package track assigns correlation ids to outbound requests and matches
// inbound frames back to them. It also holds the single pending-poll slot
// that keeps repeated merge_results polls from issuing duplicate envelopes.
package track

import (
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/keycomp/internal/wire"
)

// EventAsync is the context event value that marks a re-poll of an earlier
// merge_results request.
const EventAsync = "Async"

// NextID returns a fresh correlation id. Ids are random UUIDs, so rapid
// successive calls never collide the way timestamp-derived tokens can.
func NextID() string {
	return uuid.NewString()
}

// Match returns the frames whose queue id equals id. Frames that match
// nothing are dropped with the rest of the drain pass; responses to
// abandoned polls die here.
func Match(frames []wire.Frame, id string) []wire.Frame {
	if id == "" {
		return nil
	}
	var out []wire.Frame
	for _, f := range frames {
		if f.QueueID == id {
			out = append(out, f)
		}
	}
	return out
}

// Pending is the at-most-one outstanding poll per dispatcher: the id of the
// last unanswered merge_results request and the cursor position it was
// issued for. Safe for concurrent use.
type Pending struct {
	mu       sync.Mutex
	id       string
	position any
}

// Reuse returns the outstanding id when the new request is a re-poll of the
// same logical position: the event is EventAsync, the position deep-equals
// the remembered one, and an id is still outstanding.
func (p *Pending) Reuse(event string, position any) (string, bool) {
	if event != EventAsync {
		return "", false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.id == "" || !reflect.DeepEqual(position, p.position) {
		return "", false
	}
	return p.id, true
}

// Remember records an unanswered poll.
func (p *Pending) Remember(id string, position any) {
	p.mu.Lock()
	p.id = id
	p.position = position
	p.mu.Unlock()
}

// Clear forgets the outstanding poll. Called once a matching response has
// been delivered.
func (p *Pending) Clear() {
	p.mu.Lock()
	p.id = ""
	p.position = nil
	p.mu.Unlock()
}

// ID returns the outstanding poll id, or "" if none.
func (p *Pending) ID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id
}
