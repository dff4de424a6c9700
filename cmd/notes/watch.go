package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zlnvch/notes/client"
	"github.com/zlnvch/notes/models"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print note changes as they happen",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		s := openSession(loadCtx)
		cancel()

		feed, err := client.NewFeed(s.profile.Server, s.profile.Token)
		if err != nil {
			fatal("Error connecting to feed", err)
		}

		fmt.Printf("Watching %d notes, Ctrl-C to stop\n", len(s.sync.View().Notes))

		backoff := time.Second
		for {
			err := feed.Run(ctx, s.sync, func(event models.NoteEvent) {
				printEvent(event)
			})
			if ctx.Err() != nil {
				return
			}
			if err == nil {
				fmt.Println("Server closed the feed")
				return
			}
			if !errors.Is(err, client.ErrRemoteUnavailable) {
				fatal("Feed stopped", err)
			}

			slog.Warn("feed disconnected, reconnecting", "error", err, "in", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff = min(backoff*2, 30*time.Second)
		}
	},
}

func printEvent(event models.NoteEvent) {
	switch event.Type {
	case models.NoteDeleted:
		fmt.Printf("- %s deleted\n", event.NoteId)
	default:
		if event.Note != nil {
			fmt.Printf("%s ", event.Type)
			printNote(os.Stdout, *event.Note)
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
