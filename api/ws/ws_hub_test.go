package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/notes/auth"
	cachemocks "github.com/zlnvch/notes/cache/mocks"
	"github.com/zlnvch/notes/models"
	"github.com/zlnvch/notes/service"
)

type subscriptions struct {
	noteEvents  func([]byte)
	userDeleted func([]byte)
}

func startHub(t *testing.T) (*Hub, *subscriptions) {
	mockCache := new(cachemocks.MockCache)
	subs := &subscriptions{}

	mockCache.On("Subscribe", mock.Anything, service.NoteEventsChannel, mock.Anything).
		Run(func(args mock.Arguments) { subs.noteEvents = args.Get(2).(func([]byte)) }).
		Return(nil)
	mockCache.On("Subscribe", mock.Anything, service.UserDeletedChannel, mock.Anything).
		Run(func(args mock.Arguments) { subs.userDeleted = args.Get(2).(func([]byte)) }).
		Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(mockCache)
	require.NoError(t, hub.InitSubscriptions(ctx))
	require.NotNil(t, subs.noteEvents)
	require.NotNil(t, subs.userDeleted)

	// Unbuffered so each hand-off is handled before the test moves on
	hub.OpenCh = make(chan *Client)
	hub.CloseCh = make(chan *Client)
	hub.NoteEventCh = make(chan models.NoteEvent)
	hub.UserDeletedCh = make(chan string)
	hub.directCh = make(chan directMessage)

	go hub.Run(ctx)
	return hub, subs
}

func newTestClient(hub *Hub, userId string) *Client {
	return NewClient(hub, nil, auth.Claims{UserId: userId, Email: userId + "@example.com"}, nil)
}

func receive(t *testing.T, client *Client) ([]byte, bool) {
	t.Helper()
	select {
	case msg, ok := <-client.Send:
		return msg, ok
	case <-time.After(time.Second):
		require.Fail(t, "timed out waiting for client message")
		return nil, false
	}
}

func assertNothingReceived(t *testing.T, client *Client) {
	t.Helper()
	select {
	case msg := <-client.Send:
		assert.Fail(t, "unexpected message", "%s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func publishEvent(t *testing.T, subs *subscriptions, event models.NoteEvent) {
	b, err := json.Marshal(event)
	require.NoError(t, err)
	subs.noteEvents(b)
}

func TestHub_ForwardsEventsToOwnerOnly(t *testing.T) {
	hub, subs := startHub(t)

	alice1 := newTestClient(hub, "alice")
	alice2 := newTestClient(hub, "alice")
	bob := newTestClient(hub, "bob")
	hub.OpenCh <- alice1
	hub.OpenCh <- alice2
	hub.OpenCh <- bob

	note := models.Note{Id: "n1", UserId: "alice", Title: "hello"}
	publishEvent(t, subs, models.NoteEvent{Type: models.NoteCreated, UserId: "alice", NoteId: "n1", Note: &note})

	for _, c := range []*Client{alice1, alice2} {
		msg, ok := receive(t, c)
		require.True(t, ok)
		var event models.NoteEvent
		require.NoError(t, json.Unmarshal(msg, &event))
		assert.Equal(t, models.NoteCreated, event.Type)
		assert.Equal(t, "n1", event.Note.Id)
	}
	assertNothingReceived(t, bob)
}

func TestHub_MaxConnectionsPerUser(t *testing.T) {
	hub, _ := startHub(t)

	var clients []*Client
	for i := 0; i < maxConnectionsPerUser; i++ {
		c := newTestClient(hub, "alice")
		clients = append(clients, c)
		hub.OpenCh <- c
	}

	extra := newTestClient(hub, "alice")
	hub.OpenCh <- extra

	_, ok := receive(t, extra)
	assert.False(t, ok, "extra connection should be closed")

	// Closing a rejected client must not close anything twice
	hub.CloseCh <- extra
	hub.CloseCh <- clients[0]
	_, ok = receive(t, clients[0])
	assert.False(t, ok)
}

func TestHub_UserDeletedClosesClients(t *testing.T) {
	hub, subs := startHub(t)

	alice := newTestClient(hub, "alice")
	bob := newTestClient(hub, "bob")
	hub.OpenCh <- alice
	hub.OpenCh <- bob

	msg, err := json.Marshal(service.UserDeletedMessage{UserId: "alice"})
	require.NoError(t, err)
	subs.userDeleted(msg)

	_, ok := receive(t, alice)
	assert.False(t, ok)

	// The read pump still reports the close afterwards
	hub.CloseCh <- alice

	publishEvent(t, subs, models.NoteEvent{Type: models.NoteDeleted, UserId: "bob", NoteId: "n2"})
	_, ok = receive(t, bob)
	assert.True(t, ok)
}

func TestHub_SendToUnknownClientDropped(t *testing.T) {
	hub, _ := startHub(t)

	tracked := newTestClient(hub, "alice")
	untracked := newTestClient(hub, "alice")
	hub.OpenCh <- tracked

	hub.SendTo(untracked, []byte(`{"type":"list_response"}`))
	hub.SendTo(tracked, []byte(`{"type":"list_response"}`))

	msg, ok := receive(t, tracked)
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"list_response"}`, string(msg))
	assertNothingReceived(t, untracked)
}

func TestHub_IgnoresMalformedEvents(t *testing.T) {
	hub, subs := startHub(t)

	alice := newTestClient(hub, "alice")
	hub.OpenCh <- alice

	subs.noteEvents([]byte("{broken"))
	assertNothingReceived(t, alice)
}
