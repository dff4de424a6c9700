package cache

import "context"

type NoteCacheItem struct {
	NoteId string
	Score  int64
	Data   []byte
}

type NotesCache interface {
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) error

	AddNote(ctx context.Context, userId string, noteId string, score int64, noteData []byte) error
	AddNotesBatch(ctx context.Context, userId string, notes []NoteCacheItem) error
	RemoveNote(ctx context.Context, userId string, noteId string) error
	GetNotes(ctx context.Context, userId string) ([][]byte, error)
	IsNotesComplete(ctx context.Context, userId string) (bool, error)
	InvalidateNotes(ctx context.Context, userIds []string) error

	IncrementUserNoteCount(ctx context.Context, userId string) (int64, error)
	DecrementUserNoteCount(ctx context.Context, userId string) error
	SeedUserNoteCount(ctx context.Context, userId string, count int) error
	GetUserNoteCount(ctx context.Context, userId string) (int, error)
}
