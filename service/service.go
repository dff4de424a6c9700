package service

import (
	"github.com/zlnvch/notes/auth"
	"github.com/zlnvch/notes/cache"
	"github.com/zlnvch/notes/mq"
	"github.com/zlnvch/notes/store"
	"github.com/zlnvch/notes/worker"
	"golang.org/x/oauth2"
)

type Service struct {
	Store          store.NotesStore
	Cache          cache.NotesCache
	MQ             mq.Queue
	CounterBatcher *worker.CounterBatcher
	OAuthConfigs   map[string]*oauth2.Config
	OAuthAPIs      map[string]OAuthAPI
	Tokens         *auth.TokenIssuer
}

func NewService(
	store store.NotesStore,
	cache cache.NotesCache,
	mq mq.Queue,
	counterBatcher *worker.CounterBatcher,
	oauthConfigs map[string]*oauth2.Config,
	tokens *auth.TokenIssuer,
) (*Service, error) {
	oauthConfigs, err := addOauthEndpointsAndScopes(oauthConfigs)
	if err != nil {
		return nil, err
	}

	return &Service{
		Store:          store,
		Cache:          cache,
		MQ:             mq,
		CounterBatcher: counterBatcher,
		OAuthConfigs:   oauthConfigs,
		OAuthAPIs:      defaultOAuthAPIs(),
		Tokens:         tokens,
	}, nil
}
