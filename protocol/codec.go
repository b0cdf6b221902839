package protocol

import (
	"encoding/json"
	"fmt"
)

// Encode wraps payload in an envelope for kind t stamped with the current
// version. origin may be empty.
func Encode(t Kind, payload any, origin string) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("encode envelope: empty kind")
	}
	if payload == nil {
		return nil, fmt.Errorf("encode envelope %q: nil payload", t)
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{T: t, P: pb, O: origin, V: Version})
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, fmt.Errorf("decode envelope: empty input")
	}
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return e, nil
}

func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.P) == 0 {
		return out, fmt.Errorf("empty payload for type %q", env.T)
	}
	err := json.Unmarshal(env.P, &out)
	return out, err
}

var decoders = map[Kind]func(Envelope) (any, error){
	KindPlayerJoined:       decodeAs[PlayerJoined],
	KindPlayerLeft:         decodeAs[PlayerRef],
	KindPlayerJoinActivity: decodeAs[PlayerRef],
	KindPlayerAbortingGame: decodeAs[PlayerRef],
	KindSequenceReset:      decodeEmpty,
	KindUntimelyAbort:      decodeEmpty,
	KindPlayerMoved:        decodeAs[PlayerMoved],
}

func decodeAs[T any](env Envelope) (any, error) {
	return DecodePayload[T](env)
}

func decodeEmpty(Envelope) (any, error) {
	return Empty{}, nil
}

// Decode turns an envelope into the typed payload registered for its kind.
// The returned payload always satisfies CheckPayload.
func Decode(env Envelope) (any, error) {
	if env.V > Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.V)
	}
	dec, ok := decoders[env.T]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.T)
	}
	p, err := dec(env)
	if err != nil {
		return nil, fmt.Errorf("decode %q payload: %w", env.T, err)
	}
	return p, nil
}
