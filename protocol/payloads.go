package protocol

import (
	"fmt"
	"reflect"
)

// Payloads carried by roster events. Field names follow the server's JSON.

type PlayerJoined struct {
	ID          int    `json:"id"`
	DisplayName string `json:"displayName"`
	Owner       bool   `json:"owner,omitempty"` // lobby owner, guest otherwise
}

type PlayerRef struct {
	ID int `json:"id"`
}

type PlayerMoved struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Empty is the payload of kinds that carry no data.
type Empty struct{}

var schemas = map[Kind]reflect.Type{
	KindPlayerJoined:       reflect.TypeFor[PlayerJoined](),
	KindPlayerLeft:         reflect.TypeFor[PlayerRef](),
	KindPlayerJoinActivity: reflect.TypeFor[PlayerRef](),
	KindPlayerAbortingGame: reflect.TypeFor[PlayerRef](),
	KindSequenceReset:      reflect.TypeFor[Empty](),
	KindUntimelyAbort:      reflect.TypeFor[Empty](),
	KindPlayerMoved:        reflect.TypeFor[PlayerMoved](),
}

// CheckPayload verifies that payload has the Go type registered for k.
func CheckPayload(k Kind, payload any) error {
	want, ok := schemas[k]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	if got := reflect.TypeOf(payload); got != want {
		return fmt.Errorf("%w: %q wants %v, got %v", ErrPayloadMismatch, k, want, got)
	}
	return nil
}
