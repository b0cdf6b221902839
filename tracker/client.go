package tracker

import (
	"fmt"
	"time"
)

// Participation is a roster member's opt-in status for the current minigame.
type Participation uint8

const (
	Undecided Participation = iota
	OptIn
	OptOut
)

func (p Participation) String() string {
	switch p {
	case Undecided:
		return "UNDECIDED"
	case OptIn:
		return "OPT_IN"
	case OptOut:
		return "OPT_OUT"
	default:
		return fmt.Sprintf("Participation(%d)", uint8(p))
	}
}

func (p Participation) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Participation) UnmarshalText(b []byte) error {
	switch string(b) {
	case "UNDECIDED":
		*p = Undecided
	case "OPT_IN":
		*p = OptIn
	case "OPT_OUT":
		*p = OptOut
	default:
		return fmt.Errorf("unknown participation %q", b)
	}
	return nil
}

// OriginType tells the lobby owner apart from guests.
type OriginType uint8

const (
	Guest OriginType = iota
	Owner
)

func (o OriginType) String() string {
	if o == Owner {
		return "OWNER"
	}
	return "GUEST"
}

func (o OriginType) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *OriginType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "OWNER":
		*o = Owner
	case "GUEST":
		*o = Guest
	default:
		return fmt.Errorf("unknown origin type %q", b)
	}
	return nil
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type NetworkState struct {
	LastKnownPosition  Position `json:"lastKnownPosition"`
	MsSinceLastMessage int64    `json:"msSinceLastMessage"`

	lastMessage time.Time
}

// age fills MsSinceLastMessage relative to now. States that never saw a
// message are left untouched.
func (n NetworkState) age(now time.Time) NetworkState {
	if n.lastMessage.IsZero() {
		return n
	}
	n.MsSinceLastMessage = now.Sub(n.lastMessage).Milliseconds()
	return n
}

// Client is the identity and display data of a roster member. ID is assigned
// by the server and is unique within a roster.
type Client struct {
	ID          int          `json:"id"`
	DisplayName string       `json:"displayName"`
	Origin      OriginType   `json:"originType"`
	Network     NetworkState `json:"networkState"`
}

// TrackedClient is a Client augmented with its participation.
type TrackedClient struct {
	Client
	Participation Participation `json:"participation"`
}

func byID(id int) func(TrackedClient) bool {
	return func(c TrackedClient) bool { return c.ID == id }
}

func always(TrackedClient) bool { return true }

func withParticipation(p Participation) func(TrackedClient) TrackedClient {
	return func(c TrackedClient) TrackedClient {
		c.Participation = p
		return c
	}
}
