package main

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zlnvch/notes/api"
	"github.com/zlnvch/notes/auth"
	"github.com/zlnvch/notes/cache/redis"
	"github.com/zlnvch/notes/mq/sqsmq"
	"github.com/zlnvch/notes/store/dynamo"
	"golang.org/x/oauth2"
)

const (
	DynamoDBTable           = "Notes"
	SQSDeleteUserNotesQueue = "DeleteUserNotesQueue"
	defaultTokenTTL         = 24 * time.Hour
	shutdownGracePeriod     = 10 * time.Second
)

func main() {
	ctx := context.Background()
	devMode := os.Getenv("DEV_MODE") == "true"

	notesStore, err := dynamo.NewDynamoNotesStore(ctx, devMode, os.Getenv("DYNAMODB_ENDPOINT"), DynamoDBTable)
	if err != nil {
		log.Fatalf("Failed to create dynamodb store: %v", err)
	}

	deleteUserNotesQueue, err := sqsmq.NewSQSQueue(ctx, devMode, os.Getenv("SQS_ENDPOINT"), SQSDeleteUserNotesQueue)
	if err != nil {
		log.Fatalf("Failed to create SQS MQ: %v", err)
	}

	notesCache, err := redis.NewRedisNotesCache(ctx, devMode, os.Getenv("REDIS_ENDPOINT"))
	if err != nil {
		log.Fatalf("Failed to create redis cache: %v", err)
	}

	redirectURL := os.Getenv("OAUTH_REDIRECT_URL")
	var oauthConfigs = map[string]*oauth2.Config{
		"github": {
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			RedirectURL:  redirectURL,
		},
		"google": {
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  redirectURL,
		},
	}

	jwtSecret, err := base64.StdEncoding.DecodeString(os.Getenv("JWT_SECRET"))
	if err != nil {
		log.Fatalf("Failed to decode base64 jwtSecret: %v", err)
	}

	tokenTTL := defaultTokenTTL
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		tokenTTL, err = time.ParseDuration(v)
		if err != nil {
			log.Fatalf("Invalid TOKEN_TTL %q: %v", v, err)
		}
	}

	tokens, err := auth.NewTokenIssuer(jwtSecret, tokenTTL)
	if err != nil {
		log.Fatalf("Failed to create token issuer: %v", err)
	}

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	notesApi, err := api.NewNotesAPI(notesStore, deleteUserNotesQueue, notesCache, oauthConfigs, tokens, shutdownCtx)
	if err != nil {
		log.Fatalf("Failed to create notes api: %v", err)
	}

	mux := http.NewServeMux()
	notesApi.RegisterRoutes(mux, os.Getenv("ALLOWED_ORIGIN"))

	hostPort := "8080"
	if p := os.Getenv("HOST_PORT"); p != "" {
		hostPort = p
	}
	server := &http.Server{
		Addr:              ":" + hostPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-shutdownCtx.Done()
		log.Printf("Server shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
		}
	}()

	log.Printf("Starting server on host port: %s\n", hostPort)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
