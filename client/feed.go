package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zlnvch/notes/models"
)

const feedSubprotocol = "notes-v1"

// Feed streams note events from the server's websocket into a Synchronizer.
type Feed struct {
	URL    string
	Token  string
	Dialer *websocket.Dialer
}

// NewFeed derives the websocket URL from the REST base URL.
func NewFeed(baseURL string, token string) (*Feed, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws"

	return &Feed{
		URL:    u.String(),
		Token:  token,
		Dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

type feedMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Success bool          `json:"success"`
	Notes   []models.Note `json:"notes"`
}

// Run applies events to s until ctx is done or the server closes the
// connection. onEvent, when set, sees every event after it was applied. On
// connect it asks for a full listing so nothing missed while offline is lost.
func (f *Feed) Run(ctx context.Context, s *Synchronizer, onEvent func(models.NoteEvent)) error {
	var dialer websocket.Dialer
	if f.Dialer != nil {
		dialer = *f.Dialer
	} else {
		dialer = *websocket.DefaultDialer
	}
	// The token rides as the second subprotocol
	dialer.Subprotocols = []string{feedSubprotocol, f.Token}

	conn, _, err := dialer.DialContext(ctx, f.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	if err := conn.WriteJSON(map[string]string{"type": "list"}); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.ClosePolicyViolation {
				return fmt.Errorf("%w: %s", ErrRemoteRejected, closeErr.Text)
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
		}

		f.handle(s, payload, onEvent)
	}
}

func (f *Feed) handle(s *Synchronizer, payload []byte, onEvent func(models.NoteEvent)) {
	var msg feedMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("Ignoring malformed feed message: %v", err)
		return
	}

	switch models.NoteEventType(msg.Type) {
	case models.NoteCreated, models.NoteUpdated, models.NoteDeleted:
		var event models.NoteEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Printf("Ignoring malformed note event: %v", err)
			return
		}
		s.ApplyEvent(event)
		if onEvent != nil {
			onEvent(event)
		}
		return
	}

	if msg.Type == "list_response" {
		var list listResponse
		if err := json.Unmarshal(msg.Data, &list); err != nil || !list.Success {
			log.Printf("Feed resync failed")
			return
		}
		s.Reconcile(list.Notes)
	}
}
