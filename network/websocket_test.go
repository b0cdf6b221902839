package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"rostersync/protocol"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSSourceEmitsEachFrame(t *testing.T) {
	frames := []string{
		mustEncode(t, protocol.KindPlayerJoined, protocol.PlayerJoined{ID: 1, DisplayName: "A"}, ""),
		"not an envelope",
		mustEncode(t, protocol.KindPlayerJoinActivity, protocol.PlayerRef{ID: 1}, "p1"),
	}
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}))
	defer srv.Close()

	rec := newRecorder()
	src := &WSSource{URL: wsURL(srv)}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := src.Run(ctx, rec); err == nil {
		t.Fatalf("Run returned nil after server close, want error")
	}
	got := rec.events()
	if len(got) != 2 {
		t.Fatalf("emitted %d events, want 2", len(got))
	}
	if got[0].kind != protocol.KindPlayerJoined || got[1].kind != protocol.KindPlayerJoinActivity {
		t.Fatalf("kinds = %v, %v", got[0].kind, got[1].kind)
	}
	if got[1].origin != "p1" {
		t.Fatalf("origin = %q, want p1", got[1].origin)
	}
}

func TestWSSourceStopsOnCancel(t *testing.T) {
	frame := mustEncode(t, protocol.KindSequenceReset, protocol.Empty{}, "")
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	rec := newRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() {
		errc <- (&WSSource{URL: wsURL(srv), Reconnect: 10 * time.Millisecond}).Run(ctx, rec)
	}()

	select {
	case <-rec.seen:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for first event")
	}
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run after cancel = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestWSSourceDialError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	err := (&WSSource{URL: wsURL(srv)}).Run(context.Background(), newRecorder())
	if err == nil || !strings.Contains(err.Error(), "dial") {
		t.Fatalf("err = %v, want dial error", err)
	}
}
