package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/taskflow/internal/board/models"
	"github.com/taskflow/taskflow/internal/board/ordering"
	apperrors "github.com/taskflow/taskflow/internal/common/errors"
	"github.com/taskflow/taskflow/internal/events"
)

func (e *testEnv) columnTitles(t *testing.T, boardID string) []string {
	t.Helper()
	snap, err := e.svc.GetSnapshot(e.ctx, e.owner, boardID)
	require.NoError(t, err)
	titles := make([]string, len(snap.Columns))
	for i, c := range snap.Columns {
		titles[i] = c.Title
	}
	return titles
}

func (e *testEnv) cardTitles(t *testing.T, boardID, columnID string) []string {
	t.Helper()
	snap, err := e.svc.GetSnapshot(e.ctx, e.owner, boardID)
	require.NoError(t, err)
	cards := snap.Cards[columnID]
	titles := make([]string, len(cards))
	for i, c := range cards {
		titles[i] = c.Title
	}
	return titles
}

func (e *testEnv) cards(t *testing.T, columnID string, titles ...string) []*models.Card {
	t.Helper()
	out := make([]*models.Card, len(titles))
	for i, title := range titles {
		card, err := e.svc.CreateCard(e.ctx, e.owner, columnID, &CreateCardRequest{Title: title})
		require.NoError(t, err)
		out[i] = card
	}
	return out
}

func loc(columnID string, index int) ordering.Location {
	return ordering.Location{ContainerID: columnID, Index: index}
}

func dest(columnID string, index int) *ordering.Location {
	return &ordering.Location{ContainerID: columnID, Index: index}
}

func TestService_CreateDefaultColumnsOnce(t *testing.T) {
	env := newTestEnv(t, NewMockEventBus(), Options{})
	board := env.board(t, "Defaults")

	first, err := env.svc.CreateDefaultColumns(env.ctx, env.editor, board.ID)
	require.NoError(t, err)
	require.Len(t, first, 3)
	for i, c := range first {
		assert.Equal(t, models.DefaultColumnTitles[i], c.Title)
		assert.Equal(t, i, c.Order)
	}

	second, err := env.svc.CreateDefaultColumns(env.ctx, env.owner, board.ID)
	require.NoError(t, err)
	assert.Len(t, second, 3)
	assert.Equal(t, []string{"To Do", "In Progress", "Done"}, env.columnTitles(t, board.ID))

	_, err = env.svc.CreateDefaultColumns(env.ctx, env.viewer, board.ID)
	assert.True(t, apperrors.IsForbidden(err))
}

func TestService_MoveColumn(t *testing.T) {
	env := newTestEnv(t, NewMockEventBus(), Options{})
	board := env.board(t, "Columns")

	var ids []string
	for _, title := range []string{"A", "B", "C"} {
		col, err := env.svc.CreateColumn(env.ctx, env.owner, board.ID, title)
		require.NoError(t, err)
		ids = append(ids, col.ID)
	}

	require.NoError(t, env.svc.MoveColumn(env.ctx, env.editor, board.ID, ids[2], 2, 0))
	assert.Equal(t, []string{"C", "A", "B"}, env.columnTitles(t, board.ID))
	assert.Equal(t, events.ColumnsReordered, env.bus.Last().event.Type)

	// Moving to the same index issues no writes.
	_, before := env.repo.counts()
	require.NoError(t, env.svc.MoveColumn(env.ctx, env.owner, board.ID, ids[0], 1, 1))
	_, after := env.repo.counts()
	assert.Equal(t, before, after)
}

func TestService_MoveColumnRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, NewMockEventBus(), Options{})
	board := env.board(t, "Columns")
	cols, err := env.svc.CreateDefaultColumns(env.ctx, env.owner, board.ID)
	require.NoError(t, err)

	err = env.svc.MoveColumn(env.ctx, env.owner, board.ID, cols[0].ID, 1, 0)
	assert.True(t, apperrors.IsBadRequest(err), "stale source index")

	err = env.svc.MoveColumn(env.ctx, env.owner, board.ID, cols[0].ID, 0, 3)
	assert.True(t, apperrors.IsBadRequest(err), "destination out of range")

	err = env.svc.MoveColumn(env.ctx, env.viewer, board.ID, cols[0].ID, 0, 1)
	assert.True(t, apperrors.IsForbidden(err))

	assert.Equal(t, []string{"To Do", "In Progress", "Done"}, env.columnTitles(t, board.ID))
}

func TestService_MoveCardAcrossColumns(t *testing.T) {
	env := newTestEnv(t, NewMockEventBus(), Options{})
	board := env.board(t, "Cards")
	x, err := env.svc.CreateColumn(env.ctx, env.owner, board.ID, "X")
	require.NoError(t, err)
	y, err := env.svc.CreateColumn(env.ctx, env.owner, board.ID, "Y")
	require.NoError(t, err)
	pq := env.cards(t, x.ID, "p", "q")
	env.cards(t, y.ID, "r")

	_, before := env.repo.counts()
	require.NoError(t, env.svc.MoveCard(env.ctx, env.editor, pq[0].ID, loc(x.ID, 0), dest(y.ID, 1)))
	_, after := env.repo.counts()
	// One card write plus the board's updatedAt.
	assert.Equal(t, 2, after-before)

	assert.Equal(t, []string{"q"}, env.cardTitles(t, board.ID, x.ID))
	assert.Equal(t, []string{"r", "p"}, env.cardTitles(t, board.ID, y.ID))

	moved, err := env.repo.GetCard(env.ctx, pq[0].ID)
	require.NoError(t, err)
	assert.Equal(t, y.ID, moved.ColumnID)
	assert.Equal(t, board.ID, moved.BoardID)

	last := env.bus.Last()
	assert.Equal(t, events.CardMoved, last.event.Type)
	assert.Equal(t, y.ID, last.event.String("to_column_id"))
}

func TestService_MoveCardToTopOfColumn(t *testing.T) {
	env := newTestEnv(t, NewMockEventBus(), Options{})
	board := env.board(t, "Cards")
	x, err := env.svc.CreateColumn(env.ctx, env.owner, board.ID, "X")
	require.NoError(t, err)
	y, err := env.svc.CreateColumn(env.ctx, env.owner, board.ID, "Y")
	require.NoError(t, err)
	pq := env.cards(t, x.ID, "p", "q")
	env.cards(t, y.ID, "r", "s")

	require.NoError(t, env.svc.MoveCard(env.ctx, env.owner, pq[1].ID, loc(x.ID, 1), dest(y.ID, 0)))
	assert.Equal(t, []string{"q", "r", "s"}, env.cardTitles(t, board.ID, y.ID))

	// The source column kept a gap; moving into it still lands at the index.
	require.NoError(t, env.svc.MoveCard(env.ctx, env.owner, pq[0].ID, loc(x.ID, 0), dest(y.ID, 2)))
	assert.Equal(t, []string{"q", "r", "p", "s"}, env.cardTitles(t, board.ID, y.ID))
	assert.Empty(t, env.cardTitles(t, board.ID, x.ID))
}

func TestService_MoveCardWithinColumn(t *testing.T) {
	env := newTestEnv(t, NewMockEventBus(), Options{})
	board := env.board(t, "Cards")
	x, err := env.svc.CreateColumn(env.ctx, env.owner, board.ID, "X")
	require.NoError(t, err)
	abc := env.cards(t, x.ID, "a", "b", "c")

	require.NoError(t, env.svc.MoveCard(env.ctx, env.editor, abc[0].ID, loc(x.ID, 0), dest(x.ID, 2)))
	assert.Equal(t, []string{"b", "c", "a"}, env.cardTitles(t, board.ID, x.ID))

	// An empty destination column means the same column.
	require.NoError(t, env.svc.MoveCard(env.ctx, env.editor, abc[0].ID, loc("", 2), dest("", 0)))
	assert.Equal(t, []string{"a", "b", "c"}, env.cardTitles(t, board.ID, x.ID))
}

func TestService_MoveCardDeniedForViewer(t *testing.T) {
	env := newTestEnv(t, NewMockEventBus(), Options{})
	board := env.board(t, "Cards")
	x, err := env.svc.CreateColumn(env.ctx, env.owner, board.ID, "X")
	require.NoError(t, err)
	y, err := env.svc.CreateColumn(env.ctx, env.owner, board.ID, "Y")
	require.NoError(t, err)
	p := env.cards(t, x.ID, "p")[0]
	sent := len(env.bus.Types())

	_, before := env.repo.counts()
	err = env.svc.MoveCard(env.ctx, env.viewer, p.ID, loc(x.ID, 0), dest(y.ID, 0))
	assert.True(t, apperrors.IsForbidden(err))
	err = env.svc.MoveCard(env.ctx, env.stranger, p.ID, loc(x.ID, 0), dest(y.ID, 0))
	assert.True(t, apperrors.IsForbidden(err))
	_, after := env.repo.counts()

	assert.Equal(t, before, after)
	assert.Len(t, env.bus.Types(), sent)
	assert.Equal(t, []string{"p"}, env.cardTitles(t, board.ID, x.ID))
}

func TestService_MoveCardCancelledDragTouchesNothing(t *testing.T) {
	env := newTestEnv(t, NewMockEventBus(), Options{})

	reads, writes := env.repo.counts()
	require.NoError(t, env.svc.MoveCard(env.ctx, env.viewer, "any", loc("x", 0), nil))
	r2, w2 := env.repo.counts()
	assert.Equal(t, reads, r2)
	assert.Equal(t, writes, w2)
}

func TestService_MoveCardValidation(t *testing.T) {
	env := newTestEnv(t, NewMockEventBus(), Options{})
	board := env.board(t, "Cards")
	other := env.board(t, "Other")
	x, err := env.svc.CreateColumn(env.ctx, env.owner, board.ID, "X")
	require.NoError(t, err)
	foreign, err := env.svc.CreateColumn(env.ctx, env.owner, other.ID, "Foreign")
	require.NoError(t, err)
	pq := env.cards(t, x.ID, "p", "q")

	cases := map[string]struct {
		source ordering.Location
		dest   *ordering.Location
	}{
		"stale index":           {loc(x.ID, 1), dest(x.ID, 0)},
		"wrong source column":   {loc(foreign.ID, 0), dest(x.ID, 1)},
		"index past end":        {loc(x.ID, 0), dest(x.ID, 2)},
		"column on other board": {loc(x.ID, 0), dest(foreign.ID, 0)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := env.svc.MoveCard(env.ctx, env.owner, pq[0].ID, tc.source, tc.dest)
			assert.True(t, apperrors.IsBadRequest(err), "got %v", err)
		})
	}

	err = env.svc.MoveCard(env.ctx, env.owner, pq[0].ID, loc(x.ID, 0), dest("missing", 0))
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, []string{"p", "q"}, env.cardTitles(t, board.ID, x.ID))
}

func TestService_CardLifecycle(t *testing.T) {
	env := newTestEnv(t, NewMockEventBus(), Options{})
	board := env.board(t, "Cards")
	x, err := env.svc.CreateColumn(env.ctx, env.owner, board.ID, "X")
	require.NoError(t, err)

	_, err = env.svc.CreateCard(env.ctx, env.viewer, x.ID, &CreateCardRequest{Title: "nope"})
	assert.True(t, apperrors.IsForbidden(err))
	_, err = env.svc.CreateCard(env.ctx, env.editor, x.ID, &CreateCardRequest{Title: " "})
	assert.True(t, apperrors.IsBadRequest(err))

	card, err := env.svc.CreateCard(env.ctx, env.editor, x.ID, &CreateCardRequest{Title: "Write docs", Description: "all of them"})
	require.NoError(t, err)
	assert.Equal(t, 0, card.Order)
	assert.Equal(t, board.ID, card.BoardID)

	desc := "some of them"
	updated, err := env.svc.UpdateCard(env.ctx, env.editor, card.ID, &UpdateCardRequest{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Write docs", updated.Title)
	assert.Equal(t, "some of them", updated.Description)

	renamed, err := env.svc.RenameColumn(env.ctx, env.editor, x.ID, "Docs")
	require.NoError(t, err)
	assert.Equal(t, "Docs", renamed.Title)

	require.NoError(t, env.svc.DeleteCard(env.ctx, env.editor, card.ID))
	assert.Empty(t, env.cardTitles(t, board.ID, x.ID))

	env.cards(t, x.ID, "leftover")
	require.NoError(t, env.svc.DeleteColumn(env.ctx, env.editor, x.ID))
	assert.Empty(t, env.columnTitles(t, board.ID))

	err = env.svc.DeleteCard(env.ctx, env.editor, card.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestService_CreateCardAppendsAfterGaps(t *testing.T) {
	env := newTestEnv(t, NewMockEventBus(), Options{})
	board := env.board(t, "Cards")
	x, err := env.svc.CreateColumn(env.ctx, env.owner, board.ID, "X")
	require.NoError(t, err)
	y, err := env.svc.CreateColumn(env.ctx, env.owner, board.ID, "Y")
	require.NoError(t, err)
	abc := env.cards(t, x.ID, "a", "b", "c")

	// Leaves x as b(1), c(2).
	require.NoError(t, env.svc.MoveCard(env.ctx, env.owner, abc[0].ID, loc(x.ID, 0), dest(y.ID, 0)))

	d, err := env.svc.CreateCard(env.ctx, env.owner, x.ID, &CreateCardRequest{Title: "d"})
	require.NoError(t, err)
	assert.Equal(t, 3, d.Order)
	assert.Equal(t, []string{"b", "c", "d"}, env.cardTitles(t, board.ID, x.ID))
}

func TestService_EditingCardKeepsItsPlaceAmongEqualRanks(t *testing.T) {
	env := newTestEnv(t, NewMockEventBus(), Options{})
	board := env.board(t, "Cards")
	x, err := env.svc.CreateColumn(env.ctx, env.owner, board.ID, "X")
	require.NoError(t, err)
	y, err := env.svc.CreateColumn(env.ctx, env.owner, board.ID, "Y")
	require.NoError(t, err)
	pq := env.cards(t, x.ID, "p", "q")
	r := env.cards(t, y.ID, "r")[0]

	// p and r now share order 0 in y.
	require.NoError(t, env.svc.MoveCard(env.ctx, env.owner, pq[0].ID, loc(x.ID, 0), dest(y.ID, 0)))
	require.Equal(t, []string{"p", "r"}, env.cardTitles(t, board.ID, y.ID))

	notes := "notes"
	_, err = env.svc.UpdateCard(env.ctx, env.editor, r.ID, &UpdateCardRequest{Description: &notes})
	require.NoError(t, err)
	assert.Equal(t, []string{"p", "r"}, env.cardTitles(t, board.ID, y.ID))

	title := "p2"
	_, err = env.svc.UpdateCard(env.ctx, env.editor, pq[0].ID, &UpdateCardRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "r"}, env.cardTitles(t, board.ID, y.ID))
}
