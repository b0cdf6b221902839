package events

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rostersync/protocol"
)

// ErrUnknownKind is returned when subscribing to a kind outside the closed
// enumeration.
var ErrUnknownKind = protocol.ErrUnknownKind

var ErrNilCallback = errors.New("nil callback")

// SubscriptionID is the opaque handle returned by Subscribe.
type SubscriptionID string

// Event is an immutable envelope handed to callbacks.
type Event struct {
	Kind    protocol.Kind
	Payload any
	Origin  string
}

type subscription struct {
	id     SubscriptionID
	kind   protocol.Kind
	origin string
	call   func(Event) error
}

// Multiplexer is a typed publish/subscribe bus. The zero value is not usable;
// construct with New.
type Multiplexer struct {
	mu   sync.Mutex
	subs map[protocol.Kind][]*subscription
	log  logrus.FieldLogger
}

type Option func(*Multiplexer)

// WithLogger sets the collaborator that receives dispatch failures.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Multiplexer) {
		if l != nil {
			m.log = l
		}
	}
}

func New(opts ...Option) *Multiplexer {
	m := &Multiplexer{
		subs: make(map[protocol.Kind][]*subscription),
		log:  discardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Subscribe registers callback for kind. Events emitted with an origin equal
// to a non-empty origin are not delivered to this subscription.
func (m *Multiplexer) Subscribe(kind protocol.Kind, callback func(Event), origin string) (SubscriptionID, error) {
	if callback == nil {
		return "", ErrNilCallback
	}
	return m.SubscribeErr(kind, func(e Event) error {
		callback(e)
		return nil
	}, origin)
}

// SubscribeErr is Subscribe for callbacks that report failure. A returned
// error is logged and does not stop delivery to other subscribers.
func (m *Multiplexer) SubscribeErr(kind protocol.Kind, callback func(Event) error, origin string) (SubscriptionID, error) {
	if callback == nil {
		return "", ErrNilCallback
	}
	if !protocol.Known(kind) {
		m.log.WithField("kind", kind).Warn("subscribe to unknown event kind ignored")
		return "", fmt.Errorf("subscribe: %w: %q", ErrUnknownKind, kind)
	}
	s := &subscription{
		id:     SubscriptionID(uuid.NewString()),
		kind:   kind,
		origin: origin,
		call:   callback,
	}
	m.mu.Lock()
	m.subs[kind] = append(m.subs[kind], s)
	m.mu.Unlock()
	return s.id, nil
}

// Unsubscribe removes the given subscriptions. Unknown or already removed ids
// are ignored. It reports whether any id was removed.
func (m *Multiplexer) Unsubscribe(ids ...SubscriptionID) bool {
	if len(ids) == 0 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := false
	for kind, list := range m.subs {
		// Build a fresh slice: snapshots taken by in-flight emits keep the old one.
		kept := make([]*subscription, 0, len(list))
		for _, s := range list {
			if slices.Contains(ids, s.id) {
				removed = true
				continue
			}
			kept = append(kept, s)
		}
		if len(kept) == len(list) {
			continue
		}
		if len(kept) == 0 {
			delete(m.subs, kind)
		} else {
			m.subs[kind] = kept
		}
	}
	return removed
}

// Emit delivers payload to the subscribers of kind registered when Emit
// starts, in registration order. It returns how many callbacks completed
// successfully: subscribers skipped as self-echo, and those that panicked or
// returned an error, are not counted. All callbacks have returned by the
// time Emit does.
func (m *Multiplexer) Emit(kind protocol.Kind, payload any, origin string) int {
	logger := m.log.WithFields(logrus.Fields{"kind": kind, "origin": origin})
	if err := protocol.CheckPayload(kind, payload); err != nil {
		logger.WithError(err).Warn("emit dropped")
		return 0
	}

	m.mu.Lock()
	snapshot := m.subs[kind]
	m.mu.Unlock()

	ev := Event{Kind: kind, Payload: payload, Origin: origin}
	notified := 0
	for _, s := range snapshot {
		if origin != "" && s.origin == origin {
			continue
		}
		if err := m.dispatch(s, ev); err != nil {
			logger.WithField("subscription", s.id).WithError(err).Error("subscriber failed")
			continue
		}
		notified++
	}
	return notified
}

func (m *Multiplexer) dispatch(s *subscription, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.call(ev)
}

// Len returns the number of live subscriptions for kind.
func (m *Multiplexer) Len(kind protocol.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[kind])
}

// On subscribes a callback typed on the payload of kind. Events whose payload
// is not a P are logged and skipped.
func On[P any](m *Multiplexer, kind protocol.Kind, callback func(P, Event), origin string) (SubscriptionID, error) {
	if callback == nil {
		return "", ErrNilCallback
	}
	return m.SubscribeErr(kind, func(e Event) error {
		p, ok := e.Payload.(P)
		if !ok {
			return fmt.Errorf("payload %T is not %T", e.Payload, p)
		}
		callback(p, e)
		return nil
	}, origin)
}
