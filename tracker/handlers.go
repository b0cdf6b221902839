package tracker

import (
	"github.com/sirupsen/logrus"

	"rostersync/events"
	"rostersync/protocol"
)

func (t *Tracker) onJoined(p protocol.PlayerJoined, e events.Event) {
	origin := Guest
	if p.Owner {
		origin = Owner
	}
	inserted := t.upsert(Client{ID: p.ID, DisplayName: p.DisplayName, Origin: origin})
	t.log.WithFields(logrus.Fields{"id": p.ID, "inserted": inserted}).Debug("player joined")
}

func (t *Tracker) onLeft(p protocol.PlayerRef, e events.Event) {
	removed := t.roster.RemoveFirst(byID(p.ID))
	t.log.WithFields(logrus.Fields{"id": p.ID, "removed": removed}).Debug("player left")
}

func (t *Tracker) onJoinActivity(p protocol.PlayerRef, e events.Event) {
	n := t.roster.MutateByPredicate(byID(p.ID), withParticipation(OptIn))
	t.log.WithFields(logrus.Fields{"id": p.ID, "mutated": n}).Debug("player opted in")
}

func (t *Tracker) onAborting(p protocol.PlayerRef, e events.Event) {
	n := t.roster.MutateByPredicate(byID(p.ID), withParticipation(OptOut))
	t.log.WithFields(logrus.Fields{"id": p.ID, "mutated": n}).Debug("player opted out")
}

func (t *Tracker) onReset(_ protocol.Empty, e events.Event) {
	n := t.ResetParticipation()
	t.log.WithFields(logrus.Fields{"kind": e.Kind, "mutated": n}).Debug("participation reset")
}

func (t *Tracker) onMoved(p protocol.PlayerMoved, e events.Event) {
	now := t.now()
	t.roster.MutateByPredicate(byID(p.ID), func(c TrackedClient) TrackedClient {
		c.Network.LastKnownPosition = Position{X: p.X, Y: p.Y}
		c.Network.MsSinceLastMessage = 0
		c.Network.lastMessage = now
		return c
	})
}

// upsert inserts c as UNDECIDED, or merges identity data into the entry with
// the same ID. It reports whether c was inserted.
func (t *Tracker) upsert(c Client) bool {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	merged := t.roster.MutateByPredicate(byID(c.ID), func(existing TrackedClient) TrackedClient {
		existing.DisplayName = c.DisplayName
		existing.Origin = c.Origin
		return existing
	})
	if merged > 0 {
		return false
	}
	t.roster.Add(TrackedClient{Client: c, Participation: Undecided})
	return true
}
