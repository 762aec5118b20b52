package realtime

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const subscribePath = "/notifications/subscribe"

// SSE subscribes over a server-sent event stream with a bearer header.
type SSE struct {
	baseURL string
	client  *http.Client
}

// NewSSE creates a transport for baseURL. The client must not set a timeout,
// since the stream is expected to stay open.
func NewSSE(baseURL string, client *http.Client) *SSE {
	if client == nil {
		client = &http.Client{}
	}
	return &SSE{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *SSE) Connect(ctx context.Context, token string) (Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+subscribePath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		resp.Body.Close()
		return nil, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, fmt.Errorf("sse connection failed: %d", resp.StatusCode)
	}
	return &sseStream{body: resp.Body, frames: NewFrameReader(resp.Body)}, nil
}

type sseStream struct {
	body   io.Closer
	frames *FrameReader
}

func (s *sseStream) Next() (Event, error) { return s.frames.Next() }
func (s *sseStream) Close() error        { return s.body.Close() }

// FrameReader splits an event stream into frames. Frames are separated by a
// blank line; "event:" names the frame and "data:" lines are concatenated.
// Frames without data are skipped.
type FrameReader struct {
	r *bufio.Reader
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// Next returns the next frame with data. A partial frame at EOF is dropped.
func (f *FrameReader) Next() (Event, error) {
	name := defaultEventName
	var data strings.Builder
	for {
		line, err := f.r.ReadString('\n')
		if err != nil {
			return Event{}, err
		}
		line = strings.TrimRight(line, "\r\n")

		if strings.TrimSpace(line) == "" {
			if data.Len() > 0 {
				return Event{Name: name, Data: []byte(data.String())}, nil
			}
			name = defaultEventName
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(field) {
		case "event":
			name = strings.TrimSpace(value)
		case "data":
			data.WriteString(strings.TrimSpace(value))
		}
	}
}
