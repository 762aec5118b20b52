package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/hongminglow/aratiri-client/internal/http/respond"
	"github.com/hongminglow/aratiri-client/internal/ledger"
	"github.com/hongminglow/aratiri-client/internal/middleware"
)

const keepAliveInterval = 25 * time.Second

// NotificationHandler streams payment events to the signed-in user, as SSE by
// default or over a websocket when the request asks for an upgrade.
type NotificationHandler struct {
	hub      *ledger.Hub
	upgrader websocket.Upgrader
}

func NewNotificationHandler(hub *ledger.Hub) *NotificationHandler {
	return &NotificationHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// CORS middleware already gates browser origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *NotificationHandler) Register(r *mux.Router) {
	r.HandleFunc("/notifications/subscribe", h.handleSubscribe).Methods(http.MethodGet)
}

func (h *NotificationHandler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	// Streams outlive the server's write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Printf("[notifications] clear write deadline: %v", err)
	}
	if websocket.IsWebSocketUpgrade(r) {
		h.serveSocket(w, r, userID)
		return
	}
	h.serveSSE(w, r, userID)
}

func (h *NotificationHandler) serveSSE(w http.ResponseWriter, r *http.Request, userID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respond.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	events, leave := h.hub.Subscribe(userID)
	defer leave()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev.Data)
			if err != nil {
				log.Printf("[notifications] encode %s: %v", ev.Name, err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *NotificationHandler) serveSocket(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[notifications] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, leave := h.hub.Subscribe(userID)
	defer leave()

	// The read loop only exists to notice the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("[notifications] write to %s: %v", userID, err)
				return
			}
		}
	}
}
