package store

import (
	"context"
	"errors"

	"github.com/zlnvch/notes/models"
)

type NotesStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, userId string) (models.User, error)
	DeleteUser(ctx context.Context, userId string) error
	IncrementUserNoteCount(ctx context.Context, userId string, count int) error

	ListNotes(ctx context.Context, userId string) ([]models.Note, error)
	GetNote(ctx context.Context, userId string, noteId string) (models.Note, error)
	CreateNote(ctx context.Context, note models.Note) (models.Note, error)
	UpdateNote(ctx context.Context, note models.Note) (models.Note, error)
	DeleteNote(ctx context.Context, userId string, noteId string) error
	DeleteUserNotes(ctx context.Context, userId string) error
}

// Custom error types for clarity
var (
	ErrItemNotFound    = errors.New("item does not exist")
	ErrConditionFailed = errors.New("condition not met")
)
