package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/notes/auth"
	cachemocks "github.com/zlnvch/notes/cache/mocks"
	mqmocks "github.com/zlnvch/notes/mq/mocks"
	"github.com/zlnvch/notes/service"
	storemocks "github.com/zlnvch/notes/store/mocks"
	"github.com/zlnvch/notes/worker"
)

func setupService(t *testing.T) (*service.Service, *storemocks.MockStore, *cachemocks.MockCache, *mqmocks.MockQueue, *worker.CounterBatcher) {
	mockStore := new(storemocks.MockStore)
	mockCache := new(cachemocks.MockCache)
	mockQueue := new(mqmocks.MockQueue)

	// The batcher is not running; tests read its channel directly
	counterBatcher := worker.NewCounterBatcher(mockStore, 1000)

	tokens, err := auth.NewTokenIssuer([]byte("secret"), time.Hour)
	require.NoError(t, err)

	svc, err := service.NewService(mockStore, mockCache, mockQueue, counterBatcher, nil, tokens)
	require.NoError(t, err)

	return svc, mockStore, mockCache, mockQueue, counterBatcher
}

// Helper that creates a channel and wraps a mock call to signal when it's called
func wrapMockWithSignal(call *mock.Call) chan struct{} {
	done := make(chan struct{})
	call.Run(func(args mock.Arguments) {
		close(done)
	})
	return done
}
