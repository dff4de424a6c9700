package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/zlnvch/notes/cache"
	"github.com/zlnvch/notes/mq"
	"github.com/zlnvch/notes/store"
)

type DeleteUserNotesMessage struct {
	UserId string `json:"userId"`
}

// MQConsumer removes every note of a deleted account. Jobs that fail are left
// on the queue and come back after the visibility timeout.
type MQConsumer struct {
	deleteUserNotesQueue mq.Queue
	notesStore           store.NotesStore
	notesCache           cache.NotesCache
}

func NewMQConsumer(deleteUserNotesQueue mq.Queue, notesStore store.NotesStore, notesCache cache.NotesCache) *MQConsumer {
	return &MQConsumer{
		deleteUserNotesQueue: deleteUserNotesQueue,
		notesStore:           notesStore,
		notesCache:           notesCache,
	}
}

// Allow up to 5 minutes for the throttled batch deletion of a user's notes
const visibilityTimeout = 300

func (c *MQConsumer) Run(shutdownCtx context.Context) {
	for {
		msg, err := c.deleteUserNotesQueue.Receive(shutdownCtx, visibilityTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("mqConsumer receive error: %v", err)
			continue
		}

		if msg == nil {
			if shutdownCtx.Err() != nil {
				return
			}
			continue
		}

		if err := c.handle(msg); err != nil {
			log.Printf("mqConsumer handle error: %v", err)
		}
	}
}

func (c *MQConsumer) handle(msg *mq.Message) error {
	var deleteMsg DeleteUserNotesMessage
	if err := json.Unmarshal([]byte(msg.Body), &deleteMsg); err != nil || deleteMsg.UserId == "" {
		// Poison message: drop it instead of redelivering forever
		log.Printf("Dropping invalid delete-user-notes message: %q", msg.Body)
		return c.deleteUserNotesQueue.Delete(context.Background(), msg)
	}

	// timeout should be a little less than queue visibility timeout
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(visibilityTimeout-1)*time.Second)
	defer cancel()

	if err := c.notesStore.DeleteUserNotes(ctx, deleteMsg.UserId); err != nil {
		return err
	}

	if err := c.notesCache.InvalidateNotes(ctx, []string{deleteMsg.UserId}); err != nil {
		log.Printf("Failed to invalidate notes cache for user %s: %v", deleteMsg.UserId, err)
	}

	return c.deleteUserNotesQueue.Delete(context.Background(), msg)
}
