package network

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Replay emits the envelopes of a JSON lines stream in order. Blank lines are
// skipped. It returns the number of events emitted.
func Replay(ctx context.Context, r io.Reader, em Emitter, log logrus.FieldLogger) (int, error) {
	log = orDiscard(log)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), readLimit)
	emitted, line := 0, 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return emitted, err
		}
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		if Deliver(em, b, log.WithField("line", line)) {
			emitted++
		}
	}
	if err := sc.Err(); err != nil {
		return emitted, fmt.Errorf("replay line %d: %w", line+1, err)
	}
	return emitted, nil
}

// ReplaySource adapts Replay to Source.
type ReplaySource struct {
	Reader io.Reader
	Log    logrus.FieldLogger
}

func (s *ReplaySource) Run(ctx context.Context, em Emitter) error {
	_, err := Replay(ctx, s.Reader, em, s.Log)
	return err
}
