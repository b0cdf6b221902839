package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	readLimit    = 1 << 20 // 1MB
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	writeWait    = 10 * time.Second
)

// WSSource reads envelopes from a game server websocket, one per text frame.
type WSSource struct {
	URL    string
	Header http.Header
	Dialer *websocket.Dialer
	Log    logrus.FieldLogger

	// Reconnect, when positive, is the pause before redialing after the
	// connection drops. Zero means Run returns on the first failure.
	Reconnect time.Duration
}

func (s *WSSource) Run(ctx context.Context, em Emitter) error {
	log := orDiscard(s.Log).WithField("url", s.URL)
	for {
		err := s.runOnce(ctx, em, log)
		if ctx.Err() != nil {
			return nil
		}
		if s.Reconnect <= 0 {
			return err
		}
		log.WithError(err).WithField("retry_in", s.Reconnect).Warn("websocket source dropped")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.Reconnect):
		}
	}
}

func (s *WSSource) runOnce(ctx context.Context, em Emitter, log logrus.FieldLogger) error {
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, s.URL, s.Header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	log.Info("websocket source connected")

	// Basic timeouts + pong handling (keeps connections healthy)
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-ctx.Done():
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
				_ = conn.Close()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.New("server closed connection")
			}
			return fmt.Errorf("read: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		Deliver(em, msg, log)
	}
}
