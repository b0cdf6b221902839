package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"rostersync/events"
	"rostersync/network"
	"rostersync/protocol"
	"rostersync/store"
	"rostersync/tracker"
)

type sessionOptions struct {
	origin          string
	networkTracking bool
	httpAddr        string
	format          OutputFormat
	follow          bool
}

// runSession wires a multiplexer and tracker to src and runs src until it
// ends. With follow set every roster change is printed; otherwise the final
// roster is printed once.
func (a *app) runSession(ctx context.Context, out io.Writer, src network.Source, opts sessionOptions) error {
	bus := events.New(events.WithLogger(a.log.WithField("component", "events")))
	trOpts := []tracker.Option{
		tracker.WithLogger(a.log.WithField("component", "tracker")),
		tracker.WithOrigin(opts.origin),
	}
	if opts.networkTracking {
		trOpts = append(trOpts, tracker.WithNetworkTracking())
	}
	tr := tracker.New(bus, trOpts...)
	if err := tr.Mount(); err != nil {
		return err
	}
	defer tr.Unmount()

	joined, err := events.On(bus, protocol.KindPlayerJoined, func(p protocol.PlayerJoined, e events.Event) {
		a.log.WithFields(logrus.Fields{"id": p.ID, "name": p.DisplayName, "origin": e.Origin}).Info("player joined")
	}, "")
	if err != nil {
		return err
	}
	defer bus.Unsubscribe(joined)

	if opts.follow {
		cancel := tr.Roster().Observe(func(c store.Change[tracker.TrackedClient]) {
			if err := writeChange(out, c, opts.format); err != nil {
				a.log.WithError(err).Warn("write roster change")
			}
		})
		defer cancel()
	}

	if opts.httpAddr != "" {
		srv := &http.Server{
			Addr:              opts.httpAddr,
			Handler:           network.NewRosterHandler(tr, a.log.WithField("component", "http")),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.log.WithField("addr", opts.httpAddr).Info("serving roster")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.WithError(err).Error("roster http server stopped")
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	runErr := src.Run(ctx, bus)
	if !opts.follow {
		if err := WriteRoster(out, tr.Snapshot(), opts.format); err != nil {
			return err
		}
	}
	return runErr
}
