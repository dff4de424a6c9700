package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/zlnvch/notes/models"
	"github.com/zlnvch/notes/service"
)

const Subprotocol = "notes-v1"

type Handler struct {
	Service *service.Service
	Hub     *Hub
}

func NewHandler(svc *service.Service, hub *Hub) *Handler {
	return &Handler{
		Service: svc,
		Hub:     hub,
	}
}

func (h *Handler) NewWsUpgrader(requiredOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients (the CLI) send no Origin header
			return origin == "" || origin == requiredOrigin
		},
		Subprotocols: []string{Subprotocol},
	}
}

// ServeWS handles websocket requests from the peer. The token travels as the
// second subprotocol entry since browsers cannot set headers on a websocket.
func (h *Handler) ServeWS(wsUpgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, shutdownCtx context.Context) {
	protocols := r.Header.Get("Sec-WebSocket-Protocol")
	protocolsSplit := strings.Split(protocols, ",")

	if len(protocolsSplit) != 2 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token := strings.TrimSpace(protocolsSplit[1])

	claims, authErr := h.Service.AuthenticateToken(token)

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade ws connection: %v", err)
		return
	}

	// Must upgrade the connection in order to be able to send custom close message
	if authErr != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Unauthenticated"),
		)
		conn.Close()
		return
	}

	client := NewClient(h.Hub, conn, claims, h.HandleWsMessage)
	h.Hub.OpenCh <- client

	go client.ReadPump()
	go client.WritePump(shutdownCtx)
}

// Websocket message structs
type message struct {
	Type string `json:"type"`
}

type responseMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type listResponseData struct {
	Success bool          `json:"success"`
	Notes   []models.Note `json:"notes"`
}

// HandleWsMessage answers the few requests a feed peer may send. Note
// mutations go through the REST API, never through the socket.
func (h *Handler) HandleWsMessage(client *Client, messageType int, messageBytes []byte) {
	var msg message
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		log.Printf("Invalid JSON: %v", err)
		return
	}

	var resp responseMessage

	switch msg.Type {
	case "list":
		resp = h.handleList(client)

	default:
		log.Printf("Unknown message type: %v", msg.Type)
	}

	if resp.Type != "" {
		respBytes, err := json.Marshal(resp)
		if err != nil {
			log.Printf("Error marshaling response JSON: %v", err)
			return
		}
		h.Hub.SendTo(client, respBytes)
	}
}

func (h *Handler) handleList(client *Client) responseMessage {
	resp := responseMessage{
		Type: "list_response",
	}

	notes, err := h.Service.ListNotes(context.Background(), client.userId)
	if err != nil {
		log.Printf("ListNotes failed: %v", err)
		resp.Data = listResponseData{Success: false, Notes: []models.Note{}}
		return resp
	}
	if notes == nil {
		notes = []models.Note{}
	}

	resp.Data = listResponseData{Success: true, Notes: notes}
	return resp
}
