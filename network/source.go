package network

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"rostersync/protocol"
)

// Emitter receives decoded events. *events.Multiplexer implements it.
type Emitter interface {
	Emit(kind protocol.Kind, payload any, origin string) int
}

// Source pushes events into an Emitter until ctx is done or the source ends.
type Source interface {
	Run(ctx context.Context, em Emitter) error
}

// Deliver decodes one envelope and emits it. It reports whether the frame was
// emitted.
func Deliver(em Emitter, frame []byte, log logrus.FieldLogger) bool {
	env, err := protocol.DecodeEnvelope(frame)
	if err != nil {
		log.WithError(err).Warn("frame dropped")
		return false
	}
	payload, err := protocol.Decode(env)
	if err != nil {
		log.WithError(err).WithField("kind", env.T).Warn("frame dropped")
		return false
	}
	n := em.Emit(env.T, payload, env.O)
	log.WithFields(logrus.Fields{"kind": env.T, "origin": env.O, "notified": n}).Debug("event emitted")
	return true
}

func orDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l != nil {
		return l
	}
	d := logrus.New()
	d.SetOutput(io.Discard)
	return d
}
