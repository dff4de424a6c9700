package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/zlnvch/notes/cache"
	"github.com/zlnvch/notes/models"
	"github.com/zlnvch/notes/worker"
)

const (
	NoteEventsChannel  = "note-events"
	UserDeletedChannel = "user-deleted"

	maxUserNotes = 10000
)

var ErrNoteQuotaExceeded = errors.New("note quota exceeded")

// ListNotes serves a user's notes oldest first, from the cache when it holds
// the full set and from the store otherwise.
func (s *Service) ListNotes(ctx context.Context, userId string) ([]models.Note, error) {
	isComplete, err := s.Cache.IsNotesComplete(ctx, userId)
	if err == nil && isComplete {
		cached, err := s.Cache.GetNotes(ctx, userId)
		if err == nil {
			notes := make([]models.Note, 0, len(cached))
			for _, b := range cached {
				var note models.Note
				if err := json.Unmarshal(b, &note); err == nil {
					notes = append(notes, note)
				}
			}
			return notes, nil
		}
		log.Printf("Failed to read cached notes for user %s: %v", userId, err)
	}

	notes, err := s.Store.ListNotes(ctx, userId)
	if err != nil {
		return nil, err
	}

	batchItems := make([]cache.NoteCacheItem, 0, len(notes))
	for _, note := range notes {
		noteBytes, err := json.Marshal(note)
		if err != nil {
			continue
		}
		batchItems = append(batchItems, cache.NoteCacheItem{
			NoteId: note.Id,
			Score:  note.CreatedAt.UnixMilli(),
			Data:   noteBytes,
		})
	}
	if err := s.Cache.AddNotesBatch(ctx, userId, batchItems); err != nil {
		log.Printf("Failed to backfill notes cache for user %s: %v", userId, err)
	}

	return notes, nil
}

func (s *Service) enforceNoteQuota(ctx context.Context, userId string) error {
	noteCount, err := s.Cache.GetUserNoteCount(ctx, userId)
	if err != nil {
		return err
	}
	if noteCount == -1 {
		// Cache miss: seed from the store
		user, err := s.Store.GetUser(ctx, userId)
		if err != nil {
			return err
		}
		s.Cache.SeedUserNoteCount(ctx, userId, user.NoteCount)
		noteCount = user.NoteCount
	}

	if noteCount >= maxUserNotes {
		log.Printf("User %s exceeded note quota (%d)", userId, noteCount)
		return ErrNoteQuotaExceeded
	}
	return nil
}

// CreateNote stores input as a new note owned by userId. Identifier and
// creation time are always assigned here, whatever the client sent.
func (s *Service) CreateNote(ctx context.Context, userId string, input models.Note) (models.Note, error) {
	if err := ValidateNote(input); err != nil {
		return models.Note{}, err
	}
	if err := s.enforceNoteQuota(ctx, userId); err != nil {
		return models.Note{}, err
	}

	noteId, err := uuid.NewV7()
	if err != nil {
		return models.Note{}, err
	}

	note := input
	note.Id = noteId.String()
	note.UserId = userId
	// The store keeps millisecond precision
	note.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	created, err := s.Store.CreateNote(ctx, note)
	if err != nil {
		return models.Note{}, err
	}

	if _, err := s.Cache.IncrementUserNoteCount(ctx, userId); err != nil {
		log.Printf("Failed to increment cached note count for user %s: %v", userId, err)
	}
	s.CounterBatcher.UpdateCh <- worker.CounterUpdate{UserId: userId, Delta: 1}

	s.cacheNote(ctx, created)
	s.publishEvent(models.NoteEvent{Type: models.NoteCreated, UserId: userId, NoteId: created.Id, Note: &created})

	return created, nil
}

// UpdateNote replaces the editable fields of an existing note. The note id
// comes from the path and the owner from the token; both override the body.
func (s *Service) UpdateNote(ctx context.Context, userId string, noteId string, note models.Note) (models.Note, error) {
	if err := ValidateNote(note); err != nil {
		return models.Note{}, err
	}

	existing, err := s.Store.GetNote(ctx, userId, noteId)
	if err != nil {
		return models.Note{}, err
	}

	note.Id = noteId
	note.UserId = userId
	note.CreatedAt = existing.CreatedAt
	if note == existing {
		// Nothing changed: skip the write and the event
		return existing, nil
	}

	updated, err := s.Store.UpdateNote(ctx, note)
	if err != nil {
		return models.Note{}, err
	}

	s.cacheNote(ctx, updated)
	s.publishEvent(models.NoteEvent{Type: models.NoteUpdated, UserId: userId, NoteId: updated.Id, Note: &updated})

	return updated, nil
}

func (s *Service) DeleteNote(ctx context.Context, userId string, noteId string) error {
	if err := s.Store.DeleteNote(ctx, userId, noteId); err != nil {
		return err
	}

	if err := s.Cache.RemoveNote(ctx, userId, noteId); err != nil {
		log.Printf("Failed to remove note %s from cache: %v", noteId, err)
	}
	if err := s.Cache.DecrementUserNoteCount(ctx, userId); err != nil {
		log.Printf("Failed to decrement cached note count for user %s: %v", userId, err)
	}
	s.CounterBatcher.UpdateCh <- worker.CounterUpdate{UserId: userId, Delta: -1}

	s.publishEvent(models.NoteEvent{Type: models.NoteDeleted, UserId: userId, NoteId: noteId})

	return nil
}

func (s *Service) cacheNote(ctx context.Context, note models.Note) {
	noteBytes, err := json.Marshal(note)
	if err != nil {
		return
	}
	if err := s.Cache.AddNote(ctx, note.UserId, note.Id, note.CreatedAt.UnixMilli(), noteBytes); err != nil {
		log.Printf("Failed to cache note %s: %v", note.Id, err)
	}
}

// Async side-effect: the caller already has its answer from the store
func (s *Service) publishEvent(event models.NoteEvent) {
	go func() {
		eventBytes, err := json.Marshal(event)
		if err != nil {
			return
		}
		if err := s.Cache.Publish(context.Background(), NoteEventsChannel, eventBytes); err != nil {
			log.Printf("Failed to publish %s for note %s: %v", event.Type, event.NoteId, err)
		}
	}()
}
