package models

import "time"

type User struct {
	Id         string
	Email      string
	Username   string
	Provider   string
	ProviderId string
	Created    int64
	NoteCount  int
}

type Note struct {
	Id              string    `json:"_id"`
	UserId          string    `json:"userId"`
	Title           string    `json:"title"`
	TextContent     string    `json:"textContent"`
	ImageFile       string    `json:"imageFile,omitempty"`
	AudioFile       string    `json:"audioFile,omitempty"`
	AudioTranscript string    `json:"audioTranscript,omitempty"`
	Favourite       bool      `json:"favourite"`
	CreatedAt       time.Time `json:"createdAt"`
}

type NoteEventType string

const (
	NoteCreated NoteEventType = "note_created"
	NoteUpdated NoteEventType = "note_updated"
	NoteDeleted NoteEventType = "note_deleted"
)

// NoteEvent is published after every confirmed note mutation and fanned out
// to the owner's live connections.
type NoteEvent struct {
	Type   NoteEventType `json:"type"`
	UserId string        `json:"userId"`
	NoteId string        `json:"noteId"`
	Note   *Note         `json:"note,omitempty"`
}
