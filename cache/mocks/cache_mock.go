package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zlnvch/notes/cache"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Publish(ctx context.Context, channel string, message []byte) error {
	args := m.Called(ctx, channel, message)
	return args.Error(0)
}

func (m *MockCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	args := m.Called(ctx, channel, handler)
	return args.Error(0)
}

func (m *MockCache) AddNote(ctx context.Context, userId string, noteId string, score int64, noteData []byte) error {
	args := m.Called(ctx, userId, noteId, score, noteData)
	return args.Error(0)
}

func (m *MockCache) AddNotesBatch(ctx context.Context, userId string, notes []cache.NoteCacheItem) error {
	args := m.Called(ctx, userId, notes)
	return args.Error(0)
}

func (m *MockCache) RemoveNote(ctx context.Context, userId string, noteId string) error {
	args := m.Called(ctx, userId, noteId)
	return args.Error(0)
}

func (m *MockCache) GetNotes(ctx context.Context, userId string) ([][]byte, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).([][]byte), args.Error(1)
}

func (m *MockCache) IsNotesComplete(ctx context.Context, userId string) (bool, error) {
	args := m.Called(ctx, userId)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) InvalidateNotes(ctx context.Context, userIds []string) error {
	args := m.Called(ctx, userIds)
	return args.Error(0)
}

func (m *MockCache) IncrementUserNoteCount(ctx context.Context, userId string) (int64, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCache) DecrementUserNoteCount(ctx context.Context, userId string) error {
	args := m.Called(ctx, userId)
	return args.Error(0)
}

func (m *MockCache) SeedUserNoteCount(ctx context.Context, userId string, count int) error {
	args := m.Called(ctx, userId, count)
	return args.Error(0)
}

func (m *MockCache) GetUserNoteCount(ctx context.Context, userId string) (int, error) {
	args := m.Called(ctx, userId)
	return args.Int(0), args.Error(1)
}
