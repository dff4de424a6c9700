package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zlnvch/notes/models"
)

var (
	// ErrRemoteUnavailable covers transport failures, 5xx and 429. Worth retrying.
	ErrRemoteUnavailable = errors.New("remote unavailable")
	// ErrRemoteRejected covers every other 4xx. Retrying the same call won't help.
	ErrRemoteRejected = errors.New("remote rejected request")
)

// Remote is the note store as seen from the client.
type Remote interface {
	FetchNotes(ctx context.Context, userId string) ([]models.Note, error)
	CreateNote(ctx context.Context, note models.Note) (models.Note, error)
	UpdateNote(ctx context.Context, note models.Note) (models.Note, error)
	DeleteNote(ctx context.Context, noteId string) error
}

type LoginResult struct {
	Id       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Provider string `json:"provider"`
	Token    string `json:"token"`
}

// HTTPRemote talks to the notes REST API with a bearer token.
type HTTPRemote struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewHTTPRemote(baseURL string, token string) *HTTPRemote {
	return &HTTPRemote{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (r *HTTPRemote) FetchNotes(ctx context.Context, userId string) ([]models.Note, error) {
	var wire []wireNote
	if err := r.do(ctx, http.MethodGet, "/notes/"+url.PathEscape(userId), nil, &wire); err != nil {
		return nil, err
	}

	notes := make([]models.Note, 0, len(wire))
	for _, w := range wire {
		note, err := w.toNote()
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, nil
}

// createNoteRequest is the POST body: the server assigns id, owner and
// creation time.
type createNoteRequest struct {
	Title           string `json:"title"`
	TextContent     string `json:"textContent"`
	ImageFile       string `json:"imageFile,omitempty"`
	AudioFile       string `json:"audioFile,omitempty"`
	AudioTranscript string `json:"audioTranscript,omitempty"`
	Favourite       bool   `json:"favourite"`
}

func (r *HTTPRemote) CreateNote(ctx context.Context, note models.Note) (models.Note, error) {
	req := createNoteRequest{
		Title:           note.Title,
		TextContent:     note.TextContent,
		ImageFile:       note.ImageFile,
		AudioFile:       note.AudioFile,
		AudioTranscript: note.AudioTranscript,
		Favourite:       note.Favourite,
	}

	var wire wireNote
	if err := r.do(ctx, http.MethodPost, "/notes", req, &wire); err != nil {
		return models.Note{}, err
	}
	return wire.toNote()
}

func (r *HTTPRemote) UpdateNote(ctx context.Context, note models.Note) (models.Note, error) {
	var wire wireNote
	if err := r.do(ctx, http.MethodPut, "/notes/"+url.PathEscape(note.Id), note, &wire); err != nil {
		return models.Note{}, err
	}
	return wire.toNote()
}

func (r *HTTPRemote) DeleteNote(ctx context.Context, noteId string) error {
	return r.do(ctx, http.MethodDelete, "/notes/"+url.PathEscape(noteId), nil, nil)
}

// Login exchanges a provider authorization code for a session token.
func (r *HTTPRemote) Login(ctx context.Context, provider string, code string) (LoginResult, error) {
	var result LoginResult
	req := map[string]string{"provider": provider, "code": code}
	if err := r.do(ctx, http.MethodPost, "/login", req, &result); err != nil {
		return LoginResult{}, err
	}
	return result, nil
}

func (r *HTTPRemote) do(ctx context.Context, method string, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return err
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s %s response: %v", ErrRemoteUnavailable, method, path, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	detail := strings.TrimSpace(string(msg))

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d: %s", ErrRemoteUnavailable, resp.StatusCode, detail)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrRemoteRejected, ErrNoteNotFound)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrRemoteRejected, resp.StatusCode, detail)
	}
}

// wireNote accepts creation times written either as RFC 3339 timestamps or
// as bare dates.
type wireNote struct {
	models.Note
	CreatedAt string `json:"createdAt"`
}

var createdAtLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func (w wireNote) toNote() (models.Note, error) {
	note := w.Note
	if w.CreatedAt == "" {
		return note, nil
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, w.CreatedAt); err == nil {
			note.CreatedAt = t
			return note, nil
		}
	}
	return models.Note{}, fmt.Errorf("note %s has unparseable createdAt %q", note.Id, w.CreatedAt)
}
