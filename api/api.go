package api

import (
	"context"
	"log"
	"net/http"

	"github.com/zlnvch/notes/api/rest"
	"github.com/zlnvch/notes/api/ws"
	"github.com/zlnvch/notes/auth"
	"github.com/zlnvch/notes/cache"
	"github.com/zlnvch/notes/mq"
	"github.com/zlnvch/notes/service"
	"github.com/zlnvch/notes/store"
	"github.com/zlnvch/notes/worker"
	"golang.org/x/oauth2"
)

type NotesAPI struct {
	restHandler *rest.Handler
	wsHandler   *ws.Handler
	shutdownCtx context.Context
}

func NewNotesAPI(
	notesStore store.NotesStore,
	deleteUserNotesQueue mq.Queue,
	notesCache cache.NotesCache,
	oauthConfigs map[string]*oauth2.Config,
	tokens *auth.TokenIssuer,
	shutdownCtx context.Context,
) (*NotesAPI, error) {
	wsHub := ws.NewHub(notesCache)
	err := wsHub.InitSubscriptions(shutdownCtx)
	if err != nil {
		log.Printf("Failed to start WS Hub subscriptions service: %v", err)
		return &NotesAPI{}, err
	}
	go wsHub.Run(shutdownCtx)

	counterBatcher := worker.NewCounterBatcher(notesStore, 60000)
	go counterBatcher.Run(shutdownCtx)

	mqConsumer := worker.NewMQConsumer(deleteUserNotesQueue, notesStore, notesCache)
	go mqConsumer.Run(shutdownCtx)

	svc, err := service.NewService(
		notesStore,
		notesCache,
		deleteUserNotesQueue,
		counterBatcher,
		oauthConfigs,
		tokens,
	)
	if err != nil {
		log.Printf("Failed to create service: %v", err)
		return &NotesAPI{}, err
	}

	return &NotesAPI{
		restHandler: rest.NewHandler(svc),
		wsHandler:   ws.NewHandler(svc, wsHub),
		shutdownCtx: shutdownCtx,
	}, nil
}

func (notesAPI *NotesAPI) RegisterRoutes(mux *http.ServeMux, requiredOrigin string) {
	// Health check endpoint (no auth required)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/login", notesAPI.restHandler.HandleLogin)
	mux.HandleFunc("/me", notesAPI.restHandler.HandleMe)

	mux.HandleFunc("GET /notes/{userId}", notesAPI.restHandler.HandleListNotes)
	mux.HandleFunc("POST /notes", notesAPI.restHandler.HandleCreateNote)
	mux.HandleFunc("PUT /notes/{noteId}", notesAPI.restHandler.HandleUpdateNote)
	mux.HandleFunc("DELETE /notes/{noteId}", notesAPI.restHandler.HandleDeleteNote)

	wsUpgrader := notesAPI.wsHandler.NewWsUpgrader(requiredOrigin)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		notesAPI.wsHandler.ServeWS(wsUpgrader, w, r, notesAPI.shutdownCtx)
	})
}
