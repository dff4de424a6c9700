package service_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zlnvch/notes/models"
	"github.com/zlnvch/notes/service"
)

func TestValidateNote(t *testing.T) {
	tests := []struct {
		name    string
		note    models.Note
		wantErr string
	}{
		{
			"Valid Text Note",
			models.Note{Title: "Groceries", TextContent: "milk, eggs"},
			"",
		},
		{
			"Title Only",
			models.Note{Title: "Reminder"},
			"",
		},
		{
			"Image With Title",
			models.Note{Title: "Whiteboard", ImageFile: "https://cdn.example.com/a.png"},
			"",
		},
		{
			"Image Only",
			models.Note{ImageFile: "https://cdn.example.com/a.png"},
			"title or text required",
		},
		{
			"Audio Only",
			models.Note{AudioFile: "https://cdn.example.com/a.m4a", AudioTranscript: "hello"},
			"title or text required",
		},
		{
			"Audio With Transcript",
			models.Note{Title: "Memo", AudioFile: "https://cdn.example.com/a.m4a", AudioTranscript: "hello"},
			"",
		},
		{
			"Empty",
			models.Note{Title: "  ", TextContent: "\n"},
			"title or text required",
		},
		{
			"Title Too Long",
			models.Note{Title: strings.Repeat("a", 201)},
			"title too long",
		},
		{
			"Title Limit Counts Runes",
			models.Note{Title: strings.Repeat("é", 200)},
			"",
		},
		{
			"Text Too Long",
			models.Note{TextContent: strings.Repeat("a", 20001)},
			"text too long",
		},
		{
			"Transcript Too Long",
			models.Note{Title: "t", AudioFile: "https://cdn.example.com/a.m4a", AudioTranscript: strings.Repeat("a", 20001)},
			"transcript too long",
		},
		{
			"Transcript Without Audio",
			models.Note{Title: "t", AudioTranscript: "hello"},
			"transcript without audio",
		},
		{
			"Relative Image",
			models.Note{Title: "t", ImageFile: "/tmp/a.png"},
			"image reference must be an http(s) URL",
		},
		{
			"File Scheme Audio",
			models.Note{Title: "t", AudioFile: "file:///tmp/a.m4a"},
			"audio reference must be an http(s) URL",
		},
		{
			"Image Reference Too Long",
			models.Note{Title: "t", ImageFile: "https://cdn.example.com/" + strings.Repeat("a", 2048)},
			"image reference too long",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := service.ValidateNote(tc.note)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, service.ErrInvalidNote)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

// FuzzValidateNote tests note validation with random field content
func FuzzValidateNote(f *testing.F) {
	f.Add("Groceries", "milk", "", "")
	f.Add("", "", "https://cdn.example.com/a.png", "")
	f.Add("", "", "", "http://[::1")
	f.Add(strings.Repeat("a", 1000), "", "ftp://x", "")
	f.Add("", "", "", "")

	f.Fuzz(func(t *testing.T, title, text, image, audio string) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("ValidateNote panicked: %v", r)
			}
		}()

		_ = service.ValidateNote(models.Note{Title: title, TextContent: text, ImageFile: image, AudioFile: audio})
	})
}
