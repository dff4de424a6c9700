package client

import (
	"context"
	"errors"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/zlnvch/notes/auth"
	"github.com/zlnvch/notes/models"
)

var (
	ErrNotReady     = errors.New("notes not loaded")
	ErrSignedOut    = errors.New("not signed in")
	ErrNoteNotFound = errors.New("note not found")
)

type Phase int

const (
	Uninitialized Phase = iota
	Loading
	Ready
	Failed
	SignedOut
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case SignedOut:
		return "signed out"
	default:
		return "unknown"
	}
}

type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

func (o SortOrder) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

func (o SortOrder) reverse() SortOrder {
	if o == Ascending {
		return Descending
	}
	return Ascending
}

// Selection is either NoSelection or Viewing.
type Selection interface {
	isSelection()
}

type NoSelection struct{}

type Viewing struct {
	NoteId string
}

func (NoSelection) isSelection() {}
func (Viewing) isSelection()     {}

type Identity struct {
	UserId string
	Email  string
}

// IdentityFromToken reads the identity out of a session token without
// checking the signature; the server does that on every request. An empty
// token means nobody is signed in.
func IdentityFromToken(token string) (*Identity, error) {
	if token == "" {
		return nil, nil
	}
	claims, err := auth.ParseUnverified(token)
	if err != nil {
		return nil, err
	}
	return &Identity{UserId: claims.UserId, Email: claims.Email}, nil
}

// RetryPolicy bounds the retries of the initial fetch. Only
// ErrRemoteUnavailable is retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:    4,
	InitialBackoff: 250 * time.Millisecond,
	MaxBackoff:     4 * time.Second,
}

// View is a snapshot of the synchronizer. Notes is a copy.
type View struct {
	Phase     Phase
	Identity  *Identity
	Notes     []models.Note
	NextOrder SortOrder
	Selection Selection
	Composing bool
	Err       error
}

// Selected returns the note being viewed, if any.
func (v View) Selected() (models.Note, bool) {
	viewing, ok := v.Selection.(Viewing)
	if !ok {
		return models.Note{}, false
	}
	i := slices.IndexFunc(v.Notes, func(n models.Note) bool { return n.Id == viewing.NoteId })
	if i < 0 {
		return models.Note{}, false
	}
	return v.Notes[i], true
}

// Synchronizer keeps the signed-in user's notes in memory and mirrors every
// mutation to the Remote. Local state only changes after the remote call
// succeeds. mu guards the in-memory state and is never held across a
// remote call, so mutations on different notes may finish in any order.
type Synchronizer struct {
	RetryPolicy RetryPolicy

	remote   Remote
	identity *Identity

	mu        sync.Mutex
	phase     Phase
	notes     []models.Note
	nextOrder SortOrder
	applied   *SortOrder
	selection Selection
	composing bool
	lastErr   error
}

func NewSynchronizer(remote Remote, identity *Identity) *Synchronizer {
	return &Synchronizer{
		RetryPolicy: DefaultRetryPolicy,
		remote:      remote,
		identity:    identity,
		phase:       Uninitialized,
		nextOrder:   Ascending,
		selection:   NoSelection{},
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start loads the collection. Without an identity it goes straight to
// SignedOut and makes no remote call. Calling Start again is a no-op.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.identity == nil {
		s.phase = SignedOut
		s.mu.Unlock()
		return ErrSignedOut
	}
	if s.phase != Uninitialized {
		s.mu.Unlock()
		return nil
	}
	s.phase = Loading
	s.mu.Unlock()

	return s.load(ctx)
}

// Retry reloads the collection after a failed load. From Ready it refreshes
// in place: the collection stays usable, and a failed refresh only sets the
// view's error.
func (s *Synchronizer) Retry(ctx context.Context) error {
	s.mu.Lock()
	switch s.phase {
	case SignedOut:
		s.mu.Unlock()
		return ErrSignedOut
	case Uninitialized, Loading:
		s.mu.Unlock()
		return ErrNotReady
	case Failed:
		s.phase = Loading
	}
	s.lastErr = nil
	s.mu.Unlock()

	return s.load(ctx)
}

func (s *Synchronizer) load(ctx context.Context) error {
	notes, err := s.fetchWithRetry(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.phase == Loading {
			s.phase = Failed
		}
		s.lastErr = err
		return err
	}
	s.phase = Ready
	s.lastErr = nil
	s.notes = slices.Clone(notes)
	s.applied = nil
	s.dropStaleSelection()
	return nil
}

func (s *Synchronizer) fetchWithRetry(ctx context.Context) ([]models.Note, error) {
	attempts := max(s.RetryPolicy.MaxAttempts, 1)
	backoff := s.RetryPolicy.InitialBackoff

	for attempt := 1; ; attempt++ {
		notes, err := s.remote.FetchNotes(ctx, s.identity.UserId)
		if err == nil {
			return notes, nil
		}
		if !errors.Is(err, ErrRemoteUnavailable) || attempt >= attempts {
			return nil, err
		}

		log.Printf("Fetching notes failed (attempt %d/%d), retrying in %s: %v", attempt, attempts, backoff, err)
		if err := sleepContext(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
		if s.RetryPolicy.MaxBackoff > 0 {
			backoff = min(backoff, s.RetryPolicy.MaxBackoff)
		}
	}
}

// ready checks the phase. Callers hold mu.
func (s *Synchronizer) ready() error {
	switch s.phase {
	case Ready:
		return nil
	case SignedOut:
		return ErrSignedOut
	default:
		return ErrNotReady
	}
}

func (s *Synchronizer) indexOf(noteId string) int {
	return slices.IndexFunc(s.notes, func(n models.Note) bool { return n.Id == noteId })
}

// upsert replaces the note with the same id or appends it. Callers hold mu.
func (s *Synchronizer) upsert(note models.Note) {
	if i := s.indexOf(note.Id); i >= 0 {
		s.notes[i] = note
		return
	}
	s.notes = append(s.notes, note)
}

// remove drops the note and clears the selection if it was open. Callers hold mu.
func (s *Synchronizer) remove(noteId string) bool {
	i := s.indexOf(noteId)
	if i < 0 {
		return false
	}
	s.notes = slices.Delete(s.notes, i, i+1)
	if viewing, ok := s.selection.(Viewing); ok && viewing.NoteId == noteId {
		s.selection = NoSelection{}
	}
	return true
}

func (s *Synchronizer) dropStaleSelection() {
	if viewing, ok := s.selection.(Viewing); ok && s.indexOf(viewing.NoteId) < 0 {
		s.selection = NoSelection{}
	}
}

func (s *Synchronizer) lookup(noteId string) (models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return models.Note{}, err
	}
	i := s.indexOf(noteId)
	if i < 0 {
		return models.Note{}, ErrNoteNotFound
	}
	return s.notes[i], nil
}

// Create sends input to the remote and appends the stored note it returns.
// On failure the collection is untouched.
func (s *Synchronizer) Create(ctx context.Context, input models.Note) (models.Note, error) {
	s.mu.Lock()
	err := s.ready()
	s.mu.Unlock()
	if err != nil {
		return models.Note{}, err
	}

	created, err := s.remote.CreateNote(ctx, input)
	if err != nil {
		return models.Note{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// The live feed may have delivered it already
	s.upsert(created)
	return created, nil
}

// ToggleFavourite sends the note with its favourite flag flipped. The local
// copy only changes once the remote confirms.
func (s *Synchronizer) ToggleFavourite(ctx context.Context, noteId string) (models.Note, error) {
	note, err := s.lookup(noteId)
	if err != nil {
		return models.Note{}, err
	}

	flipped := note
	flipped.Favourite = !note.Favourite
	return s.confirmUpdate(ctx, flipped)
}

// Update replaces a note's editable fields.
func (s *Synchronizer) Update(ctx context.Context, note models.Note) (models.Note, error) {
	if _, err := s.lookup(note.Id); err != nil {
		return models.Note{}, err
	}
	return s.confirmUpdate(ctx, note)
}

func (s *Synchronizer) confirmUpdate(ctx context.Context, note models.Note) (models.Note, error) {
	updated, err := s.remote.UpdateNote(ctx, note)
	if err != nil {
		return models.Note{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A delete that finished meanwhile wins
	if i := s.indexOf(updated.Id); i >= 0 {
		s.notes[i] = updated
	}
	return updated, nil
}

// Delete removes the note remotely, then locally. A note the remote no
// longer has counts as deleted.
func (s *Synchronizer) Delete(ctx context.Context, noteId string) error {
	if _, err := s.lookup(noteId); err != nil {
		return err
	}

	if err := s.remote.DeleteNote(ctx, noteId); err != nil && !errors.Is(err, ErrNoteNotFound) {
		return err
	}

	s.NoteDeleted(noteId)
	return nil
}

// NoteDeleted is called by a collaborator that has already had the delete
// confirmed. It removes exactly that note.
func (s *Synchronizer) NoteDeleted(noteId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(noteId)
}

// ApplyEvent merges a live feed event for the signed-in user.
func (s *Synchronizer) ApplyEvent(event models.NoteEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Ready || s.identity == nil || event.UserId != s.identity.UserId {
		return
	}

	switch event.Type {
	case models.NoteCreated, models.NoteUpdated:
		if event.Note != nil {
			s.upsert(*event.Note)
		}
	case models.NoteDeleted:
		s.remove(event.NoteId)
	}
}

// Reconcile replaces the collection with a full listing from the server,
// keeping the order last applied by Sort.
func (s *Synchronizer) Reconcile(notes []models.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Ready {
		return
	}
	s.notes = slices.Clone(notes)
	if s.applied != nil {
		sortNotes(s.notes, *s.applied)
	}
	s.dropStaleSelection()
}

// Sort orders the collection by creation time using the remembered order,
// then flips the remembered order for next time. Equal timestamps keep their
// relative order. Local only.
func (s *Synchronizer) Sort() SortOrder {
	s.mu.Lock()
	defer s.mu.Unlock()

	order := s.nextOrder
	s.sortLocked(order)
	return order
}

// SortBy applies an explicit order.
func (s *Synchronizer) SortBy(order SortOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sortLocked(order)
}

func (s *Synchronizer) sortLocked(order SortOrder) {
	sortNotes(s.notes, order)
	s.applied = &order
	s.nextOrder = order.reverse()
}

func sortNotes(notes []models.Note, order SortOrder) {
	slices.SortStableFunc(notes, func(a, b models.Note) int {
		if order == Descending {
			return b.CreatedAt.Compare(a.CreatedAt)
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

// Open selects a note for viewing, replacing any previous selection.
func (s *Synchronizer) Open(noteId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	if s.indexOf(noteId) < 0 {
		return ErrNoteNotFound
	}
	s.selection = Viewing{NoteId: noteId}
	return nil
}

func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = NoSelection{}
}

// ToggleCompose flips the compose surface. It is independent of the
// selection. Signed out there is nothing to compose into.
func (s *Synchronizer) ToggleCompose() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == SignedOut {
		return false
	}
	s.composing = !s.composing
	return s.composing
}

func (s *Synchronizer) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	var identity *Identity
	if s.identity != nil {
		id := *s.identity
		identity = &id
	}

	return View{
		Phase:     s.phase,
		Identity:  identity,
		Notes:     slices.Clone(s.notes),
		NextOrder: s.nextOrder,
		Selection: s.selection,
		Composing: s.composing,
		Err:       s.lastErr,
	}
}
