package network

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"rostersync/store"
	"rostersync/tracker"
)

// RosterView is the read side of a tracker.
type RosterView interface {
	Snapshot() []tracker.TrackedClient
	GetAsClients() []tracker.Client
	GetByID(id int) (tracker.TrackedClient, bool)
	Roster() store.Reader[tracker.TrackedClient]
}

// RosterMessage is pushed on /roster/stream after every roster change. The
// first message is the current roster; a change racing with it may repeat
// its version, so clients keep only messages with a newer version.
type RosterMessage struct {
	Version uint64                  `json:"version"`
	Clients []tracker.TrackedClient `json:"clients"`
}

// streamBuffer bounds the changes queued for one stream client. A client
// that falls this far behind is disconnected rather than skipped over.
const streamBuffer = 64

type rosterHandler struct {
	view     RosterView
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

// NewRosterHandler serves:
//
//	GET /roster               full roster (?view=clients for identity only)
//	GET /roster/{id}          one client
//	GET /roster/stream        websocket, one RosterMessage per change
func NewRosterHandler(view RosterView, log logrus.FieldLogger) http.Handler {
	h := &rosterHandler{
		view: view,
		log:  orDiscard(log),
		upgrader: websocket.Upgrader{
			// Read-only local view; any origin may watch.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	r := mux.NewRouter()
	r.HandleFunc("/roster", h.list).Methods(http.MethodGet)
	r.HandleFunc("/roster/stream", h.stream).Methods(http.MethodGet)
	r.HandleFunc("/roster/{id:-?[0-9]+}", h.get).Methods(http.MethodGet)
	return r
}

func (h *rosterHandler) list(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("view") == "clients" {
		writeJSON(w, http.StatusOK, h.view.GetAsClients())
		return
	}
	writeJSON(w, http.StatusOK, h.view.Snapshot())
}

func (h *rosterHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	c, ok := h.view.GetByID(id)
	if !ok {
		http.Error(w, "client not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *rosterHandler) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("roster stream upgrade failed")
		return
	}
	defer conn.Close()
	log := h.log.WithField("remote", r.RemoteAddr)

	changes := make(chan RosterMessage, streamBuffer)
	overflow := make(chan struct{})
	roster := h.view.Roster()
	cancel := roster.Observe(func(c store.Change[tracker.TrackedClient]) {
		select {
		case changes <- RosterMessage{Version: c.Version, Clients: c.Snapshot}:
		default:
			select {
			case <-overflow:
			default:
				close(overflow)
			}
		}
	})
	defer cancel()

	// Reader: handles pongs and notices the client going away.
	gone := make(chan struct{})
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(m RosterMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(m)
	}
	if err := send(RosterMessage{Version: roster.Version(), Clients: h.view.Snapshot()}); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case m := <-changes:
			if err := send(m); err != nil {
				log.WithError(err).Debug("roster stream write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-overflow:
			log.Warn("roster stream client too slow, closing")
			msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
