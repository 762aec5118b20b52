package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// WebSocket subscribes over a socket, passing the token in the query string
// because browsers cannot set headers on the upgrade request.
type WebSocket struct {
	baseURL string
	dialer  *websocket.Dialer
}

func NewWebSocket(baseURL string, dialer *websocket.Dialer) *WebSocket {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &WebSocket{baseURL: strings.TrimRight(baseURL, "/"), dialer: dialer}
}

// envelope is one socket message; data is either inline JSON or a JSON string.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (w *WebSocket) Connect(ctx context.Context, token string) (Stream, error) {
	u, err := url.Parse(w.baseURL + subscribePath)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, resp, err := w.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	// A blocked read only returns once the connection is closed.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	return &socketStream{conn: conn, stop: stop}, nil
}

type socketStream struct {
	conn *websocket.Conn
	stop func() bool
}

func (s *socketStream) Next() (Event, error) {
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		ev, err := decodeEnvelope(msg)
		if err != nil {
			log.Printf("[realtime] ignoring malformed message: %v", err)
			continue
		}
		if len(ev.Data) == 0 {
			continue
		}
		return ev, nil
	}
}

func (s *socketStream) Close() error {
	s.stop()
	err := s.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func decodeEnvelope(msg []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return Event{}, err
	}
	name := env.Event
	if name == "" {
		name = defaultEventName
	}
	data := []byte(env.Data)
	var inner string
	if err := json.Unmarshal(env.Data, &inner); err == nil {
		data = []byte(inner)
	}
	if string(data) == "null" {
		data = nil
	}
	return Event{Name: name, Data: data}, nil
}
