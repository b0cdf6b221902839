// Package tracker keeps a roster of remote participants in sync with roster
// events delivered through an events.Multiplexer.
//
// A Tracker owns its roster store and is its only writer. Renderers read it
// through GetByID, GetAsClients, Snapshot or the store.Reader from Roster.
package tracker

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"rostersync/events"
	"rostersync/protocol"
	"rostersync/store"
)

var ErrAlreadyMounted = errors.New("tracker already mounted")

// Tracker translates roster events into roster mutations.
type Tracker struct {
	bus      *events.Multiplexer
	roster   *store.Store[TrackedClient]
	log      logrus.FieldLogger
	origin   string
	now      func() time.Time
	handlers map[protocol.Kind]func(events.Event) error

	// writeMu serializes check-then-insert on the roster.
	writeMu sync.Mutex

	mu      sync.Mutex
	subs    []events.SubscriptionID
	mounted bool
	// gen identifies the current mount. Handlers from an earlier mount that
	// are still in an emit's snapshot see a stale gen and do nothing.
	gen uint64
}

type Option func(*Tracker)

func WithLogger(l logrus.FieldLogger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.log = l
		}
	}
}

// WithOrigin tags the tracker's subscriptions so events carrying the same
// origin (the echo of a locally predicted action) are not applied twice.
func WithOrigin(origin string) Option {
	return func(t *Tracker) { t.origin = origin }
}

// WithNetworkTracking also consumes PLAYER_MOVED to keep each client's
// network state current.
func WithNetworkTracking() Option {
	return func(t *Tracker) {
		t.handlers[protocol.KindPlayerMoved] = typed(t.onMoved)
	}
}

// WithClock replaces time.Now for network ages.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

func New(bus *events.Multiplexer, opts ...Option) *Tracker {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	t := &Tracker{
		bus:    bus,
		roster: store.New[TrackedClient](),
		log:    discard,
		now:    time.Now,
	}
	t.handlers = map[protocol.Kind]func(events.Event) error{
		protocol.KindPlayerJoined:       typed(t.onJoined),
		protocol.KindPlayerLeft:         typed(t.onLeft),
		protocol.KindPlayerJoinActivity: typed(t.onJoinActivity),
		protocol.KindPlayerAbortingGame: typed(t.onAborting),
		protocol.KindSequenceReset:      typed(t.onReset),
		protocol.KindUntimelyAbort:      typed(t.onReset),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func typed[P any](fn func(P, events.Event)) func(events.Event) error {
	return func(e events.Event) error {
		p, ok := e.Payload.(P)
		if !ok {
			return fmt.Errorf("%s: payload %T is not %T", e.Kind, e.Payload, p)
		}
		fn(p, e)
		return nil
	}
}

// Mount subscribes the tracker to its roster kinds. Mounting an already
// mounted tracker returns ErrAlreadyMounted and changes nothing.
func (t *Tracker) Mount() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mounted {
		return ErrAlreadyMounted
	}
	gen := t.gen + 1
	subs := make([]events.SubscriptionID, 0, len(t.handlers))
	for _, kind := range protocol.Kinds() {
		h, ok := t.handlers[kind]
		if !ok {
			continue
		}
		id, err := t.bus.SubscribeErr(kind, t.live(gen, h), t.origin)
		if err != nil {
			t.bus.Unsubscribe(subs...)
			return fmt.Errorf("mount: %w", err)
		}
		subs = append(subs, id)
	}
	t.subs = subs
	t.gen = gen
	t.mounted = true
	t.log.WithField("kinds", len(subs)).Debug("tracker mounted")
	return nil
}

// Unmount releases every subscription made by Mount. It is safe to call on
// an unmounted tracker.
func (t *Tracker) Unmount() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.mounted {
		return
	}
	t.bus.Unsubscribe(t.subs...)
	t.subs = nil
	t.mounted = false
	t.log.Debug("tracker unmounted")
}

// live wraps h so it only runs while mount gen is current.
func (t *Tracker) live(gen uint64, h func(events.Event) error) func(events.Event) error {
	return func(e events.Event) error {
		t.mu.Lock()
		current := t.mounted && t.gen == gen
		t.mu.Unlock()
		if !current {
			return nil
		}
		return h(e)
	}
}

// Mounted reports whether the tracker currently holds subscriptions.
func (t *Tracker) Mounted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mounted
}

// Predict applies an action of the local player before the server confirms
// it. The confirmation, emitted with the tracker's origin, is then skipped.
func (t *Tracker) Predict(kind protocol.Kind, payload any) error {
	if err := protocol.CheckPayload(kind, payload); err != nil {
		return fmt.Errorf("predict: %w", err)
	}
	h, ok := t.handlers[kind]
	if !ok {
		return fmt.Errorf("predict: %w: %q not consumed by tracker", protocol.ErrUnknownKind, kind)
	}
	return h(events.Event{Kind: kind, Payload: payload, Origin: t.origin})
}

// ResetParticipation moves every client back to UNDECIDED, as
// SEQUENCE_RESET and UNTIMELY_ABORT do, and returns how many were mutated.
func (t *Tracker) ResetParticipation() int {
	return t.roster.MutateByPredicate(always, withParticipation(Undecided))
}

// AddClients seeds the roster, typically from a snapshot fetched out of
// band. Every client starts UNDECIDED. A client whose ID is already present
// updates that entry instead of being inserted twice. It returns the number
// of clients inserted.
func (t *Tracker) AddClients(clients ...Client) int {
	inserted := 0
	for _, c := range clients {
		if t.upsert(c) {
			inserted++
		}
	}
	return inserted
}

func (t *Tracker) GetByID(id int) (TrackedClient, bool) {
	c, ok := t.roster.FindFirst(byID(id))
	if !ok {
		return TrackedClient{}, false
	}
	c.Network = c.Network.age(t.now())
	return c, true
}

// GetAsClients returns the roster without participation, for consumers that
// only need identity and display data.
func (t *Tracker) GetAsClients() []Client {
	now := t.now()
	roster := t.roster.Get()
	out := make([]Client, len(roster))
	for i, c := range roster {
		out[i] = c.Client
		out[i].Network = c.Network.age(now)
	}
	return out
}

// Snapshot returns the full roster with network ages filled in.
func (t *Tracker) Snapshot() []TrackedClient {
	now := t.now()
	roster := t.roster.Get()
	for i := range roster {
		roster[i].Network = roster[i].Network.age(now)
	}
	return roster
}

// Roster exposes the underlying store read-only.
func (t *Tracker) Roster() store.Reader[TrackedClient] {
	return t.roster
}

// Counts tallies the roster by participation.
func (t *Tracker) Counts() map[Participation]int {
	out := map[Participation]int{Undecided: 0, OptIn: 0, OptOut: 0}
	for _, c := range t.roster.Get() {
		out[c.Participation]++
	}
	return out
}
