package worker

import (
	"context"
	"log"
	"time"

	"github.com/zlnvch/notes/store"
)

type CounterUpdate struct {
	UserId string
	Delta  int
}

// CounterBatcher folds note-count deltas per user and writes them to the
// store on every tick, when maxPendingUsers is reached, and on shutdown.
type CounterBatcher struct {
	UpdateCh           chan CounterUpdate
	notesStore         store.NotesStore
	tickerMilliseconds int
}

const maxPendingUsers = 100

func NewCounterBatcher(notesStore store.NotesStore, tickerMilliseconds int) *CounterBatcher {
	return &CounterBatcher{
		UpdateCh:           make(chan CounterUpdate, 1024),
		notesStore:         notesStore,
		tickerMilliseconds: tickerMilliseconds,
	}
}

func (b *CounterBatcher) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(time.Duration(b.tickerMilliseconds) * time.Millisecond)
	defer ticker.Stop()

	userDeltas := make(map[string]int)

	flush := func() {
		for userId, delta := range userDeltas {
			if delta == 0 {
				continue
			}
			go func(userId string, delta int) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := b.notesStore.IncrementUserNoteCount(ctx, userId, delta); err != nil {
					log.Printf("Failed to update note count for user %s: %v", userId, err)
				}
			}(userId, delta)
		}
		userDeltas = make(map[string]int)
	}

	for {
		select {
		case update := <-b.UpdateCh:
			if update.UserId == "" {
				continue
			}
			userDeltas[update.UserId] += update.Delta
			if len(userDeltas) >= maxPendingUsers {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-shutdownCtx.Done():
			flush()
			return
		}
	}
}
