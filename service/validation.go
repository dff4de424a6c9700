package service

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/zlnvch/notes/models"
)

var ErrInvalidNote = errors.New("invalid note")

const (
	maxTitleLength      = 200
	maxTextLength       = 20000
	maxTranscriptLength = 20000
	maxMediaRefLength   = 2048
)

func ValidateNote(note models.Note) error {
	title := strings.TrimSpace(note.Title)
	text := strings.TrimSpace(note.TextContent)

	if title == "" && text == "" {
		return fmt.Errorf("%w: title or text required", ErrInvalidNote)
	}
	if utf8.RuneCountInString(note.Title) > maxTitleLength {
		return fmt.Errorf("%w: title too long", ErrInvalidNote)
	}
	if utf8.RuneCountInString(note.TextContent) > maxTextLength {
		return fmt.Errorf("%w: text too long", ErrInvalidNote)
	}
	if utf8.RuneCountInString(note.AudioTranscript) > maxTranscriptLength {
		return fmt.Errorf("%w: transcript too long", ErrInvalidNote)
	}
	if note.AudioTranscript != "" && note.AudioFile == "" {
		return fmt.Errorf("%w: transcript without audio", ErrInvalidNote)
	}

	if err := validateMediaRef("image", note.ImageFile); err != nil {
		return err
	}
	return validateMediaRef("audio", note.AudioFile)
}

// Media is stored elsewhere; a note only holds an absolute http(s) reference.
func validateMediaRef(kind string, ref string) error {
	if ref == "" {
		return nil
	}
	if len(ref) > maxMediaRefLength {
		return fmt.Errorf("%w: %s reference too long", ErrInvalidNote, kind)
	}

	u, err := url.Parse(ref)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %s reference must be an http(s) URL", ErrInvalidNote, kind)
	}
	return nil
}
