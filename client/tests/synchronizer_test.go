package client_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/notes/client"
	"github.com/zlnvch/notes/client/mocks"
	"github.com/zlnvch/notes/models"
)

var alice = &client.Identity{UserId: "alice", Email: "alice@example.com"}

func at(sec int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, sec, 0, time.UTC)
}

func note(id string, sec int) models.Note {
	return models.Note{Id: id, UserId: "alice", Title: "note " + id, CreatedAt: at(sec)}
}

func ids(notes []models.Note) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Id)
	}
	return out
}

// readySync returns a synchronizer that has loaded notes.
func readySync(t *testing.T, notes ...models.Note) (*client.Synchronizer, *mocks.MockRemote) {
	remote := new(mocks.MockRemote)
	remote.On("FetchNotes", mock.Anything, "alice").Return(notes, nil).Once()

	s := client.NewSynchronizer(remote, alice)
	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, client.Ready, s.View().Phase)
	return s, remote
}

func TestStart_NoIdentity(t *testing.T) {
	remote := new(mocks.MockRemote)
	s := client.NewSynchronizer(remote, nil)

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, client.ErrSignedOut)

	view := s.View()
	assert.Equal(t, client.SignedOut, view.Phase)
	assert.NotEqual(t, client.Loading, view.Phase)
	assert.Empty(t, view.Notes)
	assert.False(t, s.ToggleCompose())

	remote.AssertNotCalled(t, "FetchNotes", mock.Anything, mock.Anything)

	_, err = s.Create(context.Background(), models.Note{Title: "t"})
	assert.ErrorIs(t, err, client.ErrSignedOut)
	remote.AssertNotCalled(t, "CreateNote", mock.Anything, mock.Anything)
}

func TestStart_LoadsNotes(t *testing.T) {
	s, remote := readySync(t, note("n1", 1), note("n2", 2))

	view := s.View()
	assert.Equal(t, []string{"n1", "n2"}, ids(view.Notes))
	assert.Nil(t, view.Err)
	assert.Equal(t, "alice", view.Identity.UserId)

	// Second Start is a no-op
	require.NoError(t, s.Start(context.Background()))
	remote.AssertNumberOfCalls(t, "FetchNotes", 1)
}

func TestStart_RetriesUnavailable(t *testing.T) {
	remote := new(mocks.MockRemote)
	unavailable := fmt.Errorf("%w: status 503", client.ErrRemoteUnavailable)
	remote.On("FetchNotes", mock.Anything, "alice").Return(nil, unavailable).Twice()
	remote.On("FetchNotes", mock.Anything, "alice").Return([]models.Note{note("n1", 1)}, nil).Once()

	s := client.NewSynchronizer(remote, alice)
	s.RetryPolicy = client.RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, client.Ready, s.View().Phase)
	remote.AssertNumberOfCalls(t, "FetchNotes", 3)
}

func TestStart_FailsAfterRetriesThenRetry(t *testing.T) {
	remote := new(mocks.MockRemote)
	unavailable := fmt.Errorf("%w: connection refused", client.ErrRemoteUnavailable)
	remote.On("FetchNotes", mock.Anything, "alice").Return(nil, unavailable).Times(2)

	s := client.NewSynchronizer(remote, alice)
	s.RetryPolicy = client.RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond}

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, client.ErrRemoteUnavailable)

	view := s.View()
	assert.Equal(t, client.Failed, view.Phase)
	assert.ErrorIs(t, view.Err, client.ErrRemoteUnavailable)

	_, err = s.Create(context.Background(), models.Note{Title: "t"})
	assert.ErrorIs(t, err, client.ErrNotReady)

	remote.On("FetchNotes", mock.Anything, "alice").Return([]models.Note{note("n1", 1)}, nil).Once()
	require.NoError(t, s.Retry(context.Background()))

	view = s.View()
	assert.Equal(t, client.Ready, view.Phase)
	assert.Nil(t, view.Err)
	assert.Equal(t, []string{"n1"}, ids(view.Notes))
}

func TestStart_RejectedIsNotRetried(t *testing.T) {
	remote := new(mocks.MockRemote)
	rejected := fmt.Errorf("%w: status 401", client.ErrRemoteRejected)
	remote.On("FetchNotes", mock.Anything, "alice").Return(nil, rejected).Once()

	s := client.NewSynchronizer(remote, alice)
	s.RetryPolicy = client.RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Millisecond}

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, client.ErrRemoteRejected)
	assert.Equal(t, client.Failed, s.View().Phase)
	remote.AssertNumberOfCalls(t, "FetchNotes", 1)
}

func TestStart_CancelStopsBackoff(t *testing.T) {
	remote := new(mocks.MockRemote)
	remote.On("FetchNotes", mock.Anything, "alice").Return(nil, client.ErrRemoteUnavailable)

	s := client.NewSynchronizer(remote, alice)
	s.RetryPolicy = client.RetryPolicy{MaxAttempts: 10, InitialBackoff: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := s.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, client.Failed, s.View().Phase)
}

func TestRetry_FailedRefreshKeepsReady(t *testing.T) {
	s, remote := readySync(t, note("n1", 1))
	s.RetryPolicy = client.RetryPolicy{MaxAttempts: 1}

	remote.On("FetchNotes", mock.Anything, "alice").Return(nil, client.ErrRemoteUnavailable).Once()
	err := s.Retry(context.Background())
	assert.ErrorIs(t, err, client.ErrRemoteUnavailable)

	view := s.View()
	assert.Equal(t, client.Ready, view.Phase)
	assert.ErrorIs(t, view.Err, client.ErrRemoteUnavailable)
	assert.Equal(t, []string{"n1"}, ids(view.Notes))

	// Mutations still go through
	created := note("n2", 2)
	remote.On("CreateNote", mock.Anything, mock.Anything).Return(created, nil).Once()
	_, err = s.Create(context.Background(), models.Note{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2"}, ids(s.View().Notes))
}

func TestRetry_RequiresStart(t *testing.T) {
	s := client.NewSynchronizer(new(mocks.MockRemote), alice)
	assert.ErrorIs(t, s.Retry(context.Background()), client.ErrNotReady)

	signedOut := client.NewSynchronizer(new(mocks.MockRemote), nil)
	signedOut.Start(context.Background())
	assert.ErrorIs(t, signedOut.Retry(context.Background()), client.ErrSignedOut)
}

func TestSort_StableAscending(t *testing.T) {
	s, _ := readySync(t, note("n1", 5), note("n2", 5), note("n3", 1))

	order := s.Sort()
	assert.Equal(t, client.Ascending, order)
	assert.Equal(t, []string{"n3", "n1", "n2"}, ids(s.View().Notes))
	assert.Equal(t, client.Descending, s.View().NextOrder)

	// Same order again changes nothing
	s.SortBy(client.Ascending)
	assert.Equal(t, []string{"n3", "n1", "n2"}, ids(s.View().Notes))
}

func TestSort_StableDescending(t *testing.T) {
	s, _ := readySync(t, note("n1", 1), note("n2", 5), note("n3", 5))

	s.SortBy(client.Descending)
	assert.Equal(t, []string{"n2", "n3", "n1"}, ids(s.View().Notes))
}

func TestSort_ToggleTwiceRestoresOrder(t *testing.T) {
	s, remote := readySync(t, note("a", 3), note("b", 1), note("c", 3), note("d", 2))

	s.Sort()
	sorted := ids(s.View().Notes)
	assert.Equal(t, []string{"b", "d", "a", "c"}, sorted)

	s.Sort()
	assert.Equal(t, []string{"a", "c", "d", "b"}, ids(s.View().Notes))
	s.Sort()
	assert.Equal(t, sorted, ids(s.View().Notes))

	// Sorting is local
	remote.AssertNotCalled(t, "UpdateNote", mock.Anything, mock.Anything)
	remote.AssertNumberOfCalls(t, "FetchNotes", 1)
}

func TestSort_SnapshotsAreIndependent(t *testing.T) {
	s, _ := readySync(t, note("n1", 2), note("n2", 1))

	before := s.View()
	s.SortBy(client.Ascending)

	assert.Equal(t, []string{"n1", "n2"}, ids(before.Notes))
	assert.Equal(t, []string{"n2", "n1"}, ids(s.View().Notes))
}

func TestToggleFavourite_Success(t *testing.T) {
	s, remote := readySync(t, note("n1", 1), note("n2", 2))

	remote.On("UpdateNote", mock.Anything, mock.MatchedBy(func(n models.Note) bool {
		return n.Id == "n1" && n.Favourite && n.Title == "note n1"
	})).Return(func(ctx context.Context, n models.Note) models.Note { return n }, nil)

	updated, err := s.ToggleFavourite(context.Background(), "n1")
	require.NoError(t, err)
	assert.True(t, updated.Favourite)

	view := s.View()
	assert.True(t, view.Notes[0].Favourite)
	assert.False(t, view.Notes[1].Favourite)
}

func TestToggleFavourite_FailureLeavesNoteUnchanged(t *testing.T) {
	s, remote := readySync(t, note("n1", 1))

	remote.On("UpdateNote", mock.Anything, mock.Anything).Return(models.Note{}, client.ErrRemoteUnavailable)

	_, err := s.ToggleFavourite(context.Background(), "n1")
	assert.ErrorIs(t, err, client.ErrRemoteUnavailable)
	assert.False(t, s.View().Notes[0].Favourite)
}

func TestToggleFavourite_UnknownNote(t *testing.T) {
	s, remote := readySync(t, note("n1", 1))

	_, err := s.ToggleFavourite(context.Background(), "nope")
	assert.ErrorIs(t, err, client.ErrNoteNotFound)
	remote.AssertNotCalled(t, "UpdateNote", mock.Anything, mock.Anything)
}

func TestCreate_AppendsServerNote(t *testing.T) {
	s, remote := readySync(t, note("n1", 1), note("n2", 2), note("n3", 3))
	before := s.View().Notes

	input := models.Note{Title: "new", TextContent: "body"}
	stored := models.Note{Id: "n9", UserId: "alice", Title: "new", TextContent: "body", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	remote.On("CreateNote", mock.Anything, input).Return(stored, nil)

	created, err := s.Create(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, stored, created)

	after := s.View().Notes
	require.Len(t, after, 4)
	assert.Equal(t, before, after[:3])
	assert.Equal(t, "n9", after[3].Id)
}

func TestCreate_FailureLeavesCollection(t *testing.T) {
	s, remote := readySync(t, note("n1", 1))

	remote.On("CreateNote", mock.Anything, mock.Anything).Return(models.Note{}, fmt.Errorf("%w: status 400", client.ErrRemoteRejected))

	_, err := s.Create(context.Background(), models.Note{Title: "t"})
	assert.ErrorIs(t, err, client.ErrRemoteRejected)
	assert.Equal(t, []string{"n1"}, ids(s.View().Notes))
}

func TestCreate_AfterFeedDeliveredNoDuplicate(t *testing.T) {
	s, remote := readySync(t, note("n1", 1))

	stored := note("n2", 2)
	remote.On("CreateNote", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			// Event arrives while the request is in flight
			s.ApplyEvent(models.NoteEvent{Type: models.NoteCreated, UserId: "alice", NoteId: "n2", Note: &stored})
		}).
		Return(stored, nil)

	_, err := s.Create(context.Background(), models.Note{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2"}, ids(s.View().Notes))
}

func TestNoteDeleted_RemovesExactlyThatNote(t *testing.T) {
	s, remote := readySync(t, note("n1", 1), note("n2", 2), note("n3", 3))
	before := s.View().Notes

	assert.True(t, s.NoteDeleted("n2"))

	after := s.View().Notes
	assert.Equal(t, []models.Note{before[0], before[2]}, after)
	assert.False(t, s.NoteDeleted("n2"))

	remote.AssertNotCalled(t, "DeleteNote", mock.Anything, mock.Anything)
}

func TestDelete_Confirmed(t *testing.T) {
	s, remote := readySync(t, note("n1", 1), note("n2", 2))
	require.NoError(t, s.Open("n2"))

	remote.On("DeleteNote", mock.Anything, "n2").Return(nil)

	require.NoError(t, s.Delete(context.Background(), "n2"))

	view := s.View()
	assert.Equal(t, []string{"n1"}, ids(view.Notes))
	assert.Equal(t, client.NoSelection{}, view.Selection)
}

func TestDelete_FailureKeepsNote(t *testing.T) {
	s, remote := readySync(t, note("n1", 1), note("n2", 2))

	remote.On("DeleteNote", mock.Anything, "n2").Return(client.ErrRemoteUnavailable)

	err := s.Delete(context.Background(), "n2")
	assert.ErrorIs(t, err, client.ErrRemoteUnavailable)
	assert.Equal(t, []string{"n1", "n2"}, ids(s.View().Notes))
}

func TestDelete_AlreadyGoneRemotely(t *testing.T) {
	s, remote := readySync(t, note("n1", 1))

	remote.On("DeleteNote", mock.Anything, "n1").Return(fmt.Errorf("%w: %w", client.ErrRemoteRejected, client.ErrNoteNotFound))

	require.NoError(t, s.Delete(context.Background(), "n1"))
	assert.Empty(t, s.View().Notes)
}

func TestUpdate_ServerIsGroundTruth(t *testing.T) {
	s, remote := readySync(t, note("n1", 1))

	edit := note("n1", 1)
	edit.Title = "edited"
	serverNote := edit
	serverNote.TextContent = "normalised by server"
	remote.On("UpdateNote", mock.Anything, edit).Return(serverNote, nil)

	_, err := s.Update(context.Background(), edit)
	require.NoError(t, err)
	assert.Equal(t, serverNote, s.View().Notes[0])
}

func TestUpdate_DeletedWhileInFlight(t *testing.T) {
	s, remote := readySync(t, note("n1", 1))

	remote.On("UpdateNote", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { s.NoteDeleted("n1") }).
		Return(func(ctx context.Context, n models.Note) models.Note { return n }, nil)

	_, err := s.ToggleFavourite(context.Background(), "n1")
	require.NoError(t, err)
	assert.Empty(t, s.View().Notes)
}

func TestSelection(t *testing.T) {
	s, _ := readySync(t, note("n1", 1), note("n2", 2))

	assert.Equal(t, client.NoSelection{}, s.View().Selection)

	require.NoError(t, s.Open("n1"))
	require.NoError(t, s.Open("n2"))
	view := s.View()
	assert.Equal(t, client.Viewing{NoteId: "n2"}, view.Selection)
	selected, ok := view.Selected()
	require.True(t, ok)
	assert.Equal(t, "n2", selected.Id)

	assert.ErrorIs(t, s.Open("missing"), client.ErrNoteNotFound)
	assert.Equal(t, client.Viewing{NoteId: "n2"}, s.View().Selection)

	// Compose is independent of the selection
	assert.True(t, s.ToggleCompose())
	assert.Equal(t, client.Viewing{NoteId: "n2"}, s.View().Selection)
	s.Close()
	assert.True(t, s.View().Composing)
	assert.Equal(t, client.NoSelection{}, s.View().Selection)
	assert.False(t, s.ToggleCompose())

	_, ok = s.View().Selected()
	assert.False(t, ok)
}

func TestApplyEvent(t *testing.T) {
	s, _ := readySync(t, note("n1", 1), note("n2", 2))

	n3 := note("n3", 3)
	s.ApplyEvent(models.NoteEvent{Type: models.NoteCreated, UserId: "alice", NoteId: "n3", Note: &n3})
	// Replayed event is idempotent
	s.ApplyEvent(models.NoteEvent{Type: models.NoteCreated, UserId: "alice", NoteId: "n3", Note: &n3})
	assert.Equal(t, []string{"n1", "n2", "n3"}, ids(s.View().Notes))

	fav := note("n1", 1)
	fav.Favourite = true
	s.ApplyEvent(models.NoteEvent{Type: models.NoteUpdated, UserId: "alice", NoteId: "n1", Note: &fav})
	assert.True(t, s.View().Notes[0].Favourite)

	s.ApplyEvent(models.NoteEvent{Type: models.NoteDeleted, UserId: "alice", NoteId: "n2"})
	assert.Equal(t, []string{"n1", "n3"}, ids(s.View().Notes))

	// Someone else's events are ignored
	other := models.Note{Id: "x", UserId: "bob"}
	s.ApplyEvent(models.NoteEvent{Type: models.NoteCreated, UserId: "bob", NoteId: "x", Note: &other})
	assert.Equal(t, []string{"n1", "n3"}, ids(s.View().Notes))
}

func TestReconcile_KeepsAppliedOrder(t *testing.T) {
	s, _ := readySync(t, note("n1", 1), note("n2", 2))
	s.SortBy(client.Descending)
	require.NoError(t, s.Open("n1"))

	s.Reconcile([]models.Note{note("n2", 2), note("n3", 3)})

	view := s.View()
	assert.Equal(t, []string{"n3", "n2"}, ids(view.Notes))
	assert.Equal(t, client.NoSelection{}, view.Selection)
}

func TestConcurrentMutationsOnDistinctNotes(t *testing.T) {
	notes := make([]models.Note, 20)
	for i := range notes {
		notes[i] = note(fmt.Sprintf("n%d", i), i)
	}
	s, remote := readySync(t, notes...)

	remote.On("UpdateNote", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			// Vary latency so completions interleave
			n := args.Get(1).(models.Note)
			time.Sleep(time.Duration(len(n.Id)%3) * time.Millisecond)
		}).
		Return(func(ctx context.Context, n models.Note) models.Note { return n }, nil)

	var wg sync.WaitGroup
	errs := make(chan error, len(notes))
	for _, n := range notes {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := s.ToggleFavourite(context.Background(), id); err != nil {
				errs <- err
			}
		}(n.Id)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	for _, n := range s.View().Notes {
		assert.True(t, n.Favourite, n.Id)
	}
}

func TestIdentityFromToken(t *testing.T) {
	identity, err := client.IdentityFromToken("")
	assert.NoError(t, err)
	assert.Nil(t, identity)

	_, err = client.IdentityFromToken("not-a-token")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, client.ErrSignedOut))
}
