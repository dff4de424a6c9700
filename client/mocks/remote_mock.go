package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zlnvch/notes/models"
)

type MockRemote struct {
	mock.Mock
}

func (m *MockRemote) FetchNotes(ctx context.Context, userId string) ([]models.Note, error) {
	args := m.Called(ctx, userId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Note), args.Error(1)
}

func (m *MockRemote) CreateNote(ctx context.Context, note models.Note) (models.Note, error) {
	args := m.Called(ctx, note)
	return args.Get(0).(models.Note), args.Error(1)
}

func (m *MockRemote) UpdateNote(ctx context.Context, note models.Note) (models.Note, error) {
	args := m.Called(ctx, note)
	if fn, ok := args.Get(0).(func(context.Context, models.Note) models.Note); ok {
		return fn(ctx, note), args.Error(1)
	}
	return args.Get(0).(models.Note), args.Error(1)
}

func (m *MockRemote) DeleteNote(ctx context.Context, noteId string) error {
	args := m.Called(ctx, noteId)
	return args.Error(0)
}
