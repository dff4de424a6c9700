package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zlnvch/notes/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockStore) GetUser(ctx context.Context, userId string) (models.User, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockStore) DeleteUser(ctx context.Context, userId string) error {
	args := m.Called(ctx, userId)
	return args.Error(0)
}

func (m *MockStore) IncrementUserNoteCount(ctx context.Context, userId string, count int) error {
	args := m.Called(ctx, userId, count)
	return args.Error(0)
}

func (m *MockStore) ListNotes(ctx context.Context, userId string) ([]models.Note, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).([]models.Note), args.Error(1)
}

func (m *MockStore) GetNote(ctx context.Context, userId string, noteId string) (models.Note, error) {
	args := m.Called(ctx, userId, noteId)
	return args.Get(0).(models.Note), args.Error(1)
}

func (m *MockStore) CreateNote(ctx context.Context, note models.Note) (models.Note, error) {
	args := m.Called(ctx, note)
	if fn, ok := args.Get(0).(func(context.Context, models.Note) models.Note); ok {
		return fn(ctx, note), args.Error(1)
	}
	return args.Get(0).(models.Note), args.Error(1)
}

func (m *MockStore) UpdateNote(ctx context.Context, note models.Note) (models.Note, error) {
	args := m.Called(ctx, note)
	return args.Get(0).(models.Note), args.Error(1)
}

func (m *MockStore) DeleteNote(ctx context.Context, userId string, noteId string) error {
	args := m.Called(ctx, userId, noteId)
	return args.Error(0)
}

func (m *MockStore) DeleteUserNotes(ctx context.Context, userId string) error {
	args := m.Called(ctx, userId)
	return args.Error(0)
}
