package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/zlnvch/notes/cache"
	"github.com/zlnvch/notes/models"
	"github.com/zlnvch/notes/service"
)

type directMessage struct {
	client  *Client
	payload []byte
}

// Hub owns the user -> clients map. Everything reaches it through channels
// so only Run touches the map and only Run closes a client's Send.
type Hub struct {
	notesCache    cache.NotesCache
	OpenCh        chan *Client
	CloseCh       chan *Client
	NoteEventCh   chan models.NoteEvent
	UserDeletedCh chan string
	directCh      chan directMessage
	userToClients map[string]map[*Client]struct{}
}

func NewHub(notesCache cache.NotesCache) *Hub {
	return &Hub{
		notesCache:    notesCache,
		OpenCh:        make(chan *Client, 256),
		CloseCh:       make(chan *Client, 256),
		NoteEventCh:   make(chan models.NoteEvent, 1024),
		UserDeletedCh: make(chan string, 64),
		directCh:      make(chan directMessage, 256),
		userToClients: make(map[string]map[*Client]struct{}),
	}
}

const maxConnectionsPerUser = 3

func (h *Hub) Run(shutdownCtx context.Context) {
	for {
		select {
		case client := <-h.OpenCh:
			if _, ok := h.userToClients[client.userId]; !ok {
				h.userToClients[client.userId] = make(map[*Client]struct{})
			}

			if len(h.userToClients[client.userId]) >= maxConnectionsPerUser {
				log.Printf("User %s reached max connections (%d)", client.userId, maxConnectionsPerUser)
				close(client.Send)
				continue
			}

			h.userToClients[client.userId][client] = struct{}{}

		case client := <-h.CloseCh:
			if _, ok := h.userToClients[client.userId][client]; !ok {
				continue
			}
			delete(h.userToClients[client.userId], client)
			close(client.Send)
			if len(h.userToClients[client.userId]) == 0 {
				delete(h.userToClients, client.userId)
			}

		case event := <-h.NoteEventCh:
			clients, ok := h.userToClients[event.UserId]
			if !ok {
				continue
			}
			eventBytes, err := json.Marshal(event)
			if err != nil {
				log.Printf("Failed to marshal note event: %v", err)
				continue
			}
			for client := range clients {
				h.send(client, eventBytes)
			}

		case msg := <-h.directCh:
			if _, ok := h.userToClients[msg.client.userId][msg.client]; ok {
				h.send(msg.client, msg.payload)
			}

		case userId := <-h.UserDeletedCh:
			if clients, ok := h.userToClients[userId]; ok {
				for client := range clients {
					close(client.Send)
				}
				delete(h.userToClients, userId)
			}

		case <-shutdownCtx.Done():
			return
		}
	}
}

// A client that cannot keep up misses events; it resyncs with a list request.
func (h *Hub) send(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
		log.Printf("Dropping message for slow client of user %s", client.userId)
	}
}

// SendTo queues a reply for one client. Replies to clients the hub no longer
// tracks are dropped.
func (h *Hub) SendTo(client *Client, payload []byte) {
	h.directCh <- directMessage{client: client, payload: payload}
}

func (h *Hub) InitSubscriptions(shutdownCtx context.Context) error {
	err := h.notesCache.Subscribe(shutdownCtx, service.NoteEventsChannel, func(message []byte) {
		var event models.NoteEvent
		if err := json.Unmarshal(message, &event); err != nil {
			log.Printf("Failed to unmarshal note event: %v", err)
			return
		}
		h.NoteEventCh <- event
	})
	if err != nil {
		log.Printf("WS hub failed to subscribe to %s: %v", service.NoteEventsChannel, err)
		return err
	}

	err = h.notesCache.Subscribe(shutdownCtx, service.UserDeletedChannel, func(message []byte) {
		var userDeletedMsg service.UserDeletedMessage
		if err := json.Unmarshal(message, &userDeletedMsg); err == nil {
			h.UserDeletedCh <- userDeletedMsg.UserId
		}
	})
	if err != nil {
		log.Printf("WS hub failed to subscribe to %s: %v", service.UserDeletedChannel, err)
		return err
	}

	return nil
}
