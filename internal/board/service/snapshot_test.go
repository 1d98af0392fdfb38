package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apperrors "github.com/taskflow/taskflow/internal/common/errors"
	"github.com/taskflow/taskflow/internal/common/logger"
	"github.com/taskflow/taskflow/internal/events/bus"
)

type delivery struct {
	snap *Snapshot
	err  error
}

func collect() (SnapshotFunc, <-chan delivery) {
	ch := make(chan delivery, 32)
	return func(snap *Snapshot, err error) {
		ch <- delivery{snap: snap, err: err}
	}, ch
}

// waitFor returns the first delivery matching ok.
func waitFor(t *testing.T, ch <-chan delivery, ok func(delivery) bool) delivery {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case d := <-ch:
			if ok(d) {
				return d
			}
		case <-timeout:
			t.Fatal("timed out waiting for snapshot")
			return delivery{}
		}
	}
}

func TestService_GetSnapshot(t *testing.T) {
	env := newTestEnv(t, NewMockEventBus(), Options{})
	board := env.board(t, "Snap")
	cols, err := env.svc.CreateDefaultColumns(env.ctx, env.owner, board.ID)
	require.NoError(t, err)
	env.cards(t, cols[1].ID, "one", "two")

	snap, err := env.svc.GetSnapshot(env.ctx, env.viewer, board.ID)
	require.NoError(t, err)
	assert.Equal(t, board.ID, snap.Board.ID)
	require.Len(t, snap.Columns, 3)
	assert.Empty(t, snap.Cards[cols[0].ID])
	assert.NotNil(t, snap.Cards[cols[0].ID])
	require.Len(t, snap.Cards[cols[1].ID], 2)
	assert.Equal(t, "one", snap.Cards[cols[1].ID][0].Title)

	_, err = env.svc.GetSnapshot(env.ctx, env.stranger, board.ID)
	assert.True(t, apperrors.IsForbidden(err))
}

func TestService_SubscribeDeliversChanges(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	eventBus := bus.NewMemoryEventBus(logger.NewNop())
	defer eventBus.Close()
	env := newTestEnv(t, eventBus, Options{})
	board := env.board(t, "Live")
	cols, err := env.svc.CreateDefaultColumns(env.ctx, env.owner, board.ID)
	require.NoError(t, err)

	fn, ch := collect()
	unsubscribe, err := env.svc.Subscribe(env.ctx, env.viewer, board.ID, fn)
	require.NoError(t, err)

	first := waitFor(t, ch, func(delivery) bool { return true })
	require.NoError(t, first.err)
	assert.Len(t, first.snap.Columns, 3)

	_, err = env.svc.CreateCard(env.ctx, env.editor, cols[0].ID, &CreateCardRequest{Title: "live"})
	require.NoError(t, err)

	got := waitFor(t, ch, func(d delivery) bool {
		return d.err == nil && len(d.snap.Cards[cols[0].ID]) == 1
	})
	assert.Equal(t, "live", got.snap.Cards[cols[0].ID][0].Title)

	unsubscribe()
	unsubscribe()
}

func TestService_SubscribeEndsWhenAccessIsRevoked(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	eventBus := bus.NewMemoryEventBus(logger.NewNop())
	defer eventBus.Close()
	env := newTestEnv(t, eventBus, Options{})
	board := env.board(t, "Live")

	fn, ch := collect()
	unsubscribe, err := env.svc.Subscribe(env.ctx, env.viewer, board.ID, fn)
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, env.svc.RemoveMember(env.ctx, env.owner, board.ID, env.viewer))

	got := waitFor(t, ch, func(d delivery) bool { return d.err != nil })
	assert.True(t, apperrors.IsForbidden(got.err))
}

func TestService_SubscribeRejectsStrangers(t *testing.T) {
	eventBus := bus.NewMemoryEventBus(logger.NewNop())
	defer eventBus.Close()
	env := newTestEnv(t, eventBus, Options{})
	board := env.board(t, "Private")

	fn, _ := collect()
	_, err := env.svc.Subscribe(env.ctx, env.stranger, board.ID, fn)
	assert.True(t, apperrors.IsForbidden(err))

	_, err = env.svc.Subscribe(env.ctx, env.owner, "missing", fn)
	assert.True(t, apperrors.IsNotFound(err))
}
