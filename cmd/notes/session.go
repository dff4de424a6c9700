package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/zlnvch/notes/client"
	"github.com/zlnvch/notes/models"
)

type session struct {
	profile Profile
	remote  *client.HTTPRemote
	sync    *client.Synchronizer
}

func currentProfile() Profile {
	path, err := profilePath()
	if err != nil {
		fatal("Error locating profile", err)
	}
	p, err := loadProfile(path)
	if err != nil {
		fatal("Error reading profile", err)
	}
	return p.resolve(serverFlag, tokenFlag, os.Getenv("NOTES_TOKEN"))
}

// openSession loads the signed-in user's notes. Signed out, it prints the
// sign-in prompt and exits.
func openSession(ctx context.Context) *session {
	p := currentProfile()

	identity, err := client.IdentityFromToken(p.Token)
	if err != nil {
		fatal("Error reading session token", err)
	}

	remote := client.NewHTTPRemote(p.Server, p.Token)
	sync := client.NewSynchronizer(remote, identity)

	slog.Debug("loading notes", "server", p.Server)
	if err := sync.Start(ctx); err != nil {
		if sync.View().Phase == client.SignedOut {
			fmt.Fprintln(os.Stderr, "You need to sign up or log in to create and view notes. Run: notes login")
			os.Exit(1)
		}
		fatal("Error loading notes", err)
	}

	return &session{profile: p, remote: remote, sync: sync}
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func printNote(w io.Writer, n models.Note) {
	star := " "
	if n.Favourite {
		star = "*"
	}
	title := n.Title
	if title == "" {
		title = firstLine(n.TextContent)
	}
	fmt.Fprintf(w, "%s %s  %s  %s\n", star, n.Id, n.CreatedAt.Local().Format("2006-01-02 15:04"), title)
}

func printNoteDetail(w io.Writer, n models.Note) {
	printNote(w, n)
	if n.TextContent != "" {
		fmt.Fprintf(w, "\n%s\n", n.TextContent)
	}
	if n.ImageFile != "" {
		fmt.Fprintf(w, "\nimage: %s\n", n.ImageFile)
	}
	if n.AudioFile != "" {
		fmt.Fprintf(w, "audio: %s\n", n.AudioFile)
	}
	if n.AudioTranscript != "" {
		fmt.Fprintf(w, "transcript: %s\n", n.AudioTranscript)
	}
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if r := []rune(line); len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return line
}
