package protocol

import (
	"encoding/json"
	"errors"
	"slices"
)

// Kind tags the schema and meaning of an event payload.
type Kind string

// Roster kinds pushed by the game server.
const (
	KindPlayerJoined       Kind = "PLAYER_JOINED"
	KindPlayerLeft         Kind = "PLAYER_LEFT"
	KindPlayerJoinActivity Kind = "PLAYER_JOIN_ACTIVITY"
	KindPlayerAbortingGame Kind = "PLAYER_ABORTING_MINIGAME"
	KindSequenceReset      Kind = "GENERIC_MINIGAME_SEQUENCE_RESET"
	KindUntimelyAbort      Kind = "GENERIC_MINIGAME_UNTIMELY_ABORT"
	KindPlayerMoved        Kind = "PLAYER_MOVED"
)

// Version of the kind enumeration. Envelopes stamped with a newer version are
// rejected by Decode.
const Version = 1

var (
	ErrUnknownKind        = errors.New("unknown event kind")
	ErrPayloadMismatch    = errors.New("payload does not match kind schema")
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
)

type Envelope struct {
	T Kind            `json:"t"`
	P json.RawMessage `json:"p,omitempty"` // raw payload bytes
	O string          `json:"o,omitempty"` // origin tag of the emitter
	V int             `json:"v,omitempty"`
}

// Known reports whether k belongs to the closed kind enumeration.
func Known(k Kind) bool {
	_, ok := schemas[k]
	return ok
}

// Kinds returns every known kind in lexical order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(schemas))
	for k := range schemas {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
