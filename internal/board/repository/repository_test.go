package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/taskflow/internal/board/models"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return epoch.Add(time.Duration(minutes) * time.Minute)
}

type fixture struct {
	repo  Repository
	ctx   context.Context
	owner *models.User
	other *models.User
	board *models.Board
}

func newFixture(t *testing.T, repo Repository) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{repo: repo, ctx: ctx}

	f.owner = &models.User{Name: "Olive", Email: "olive@example.com", CreatedAt: epoch, UpdatedAt: epoch}
	require.NoError(t, repo.CreateUser(ctx, f.owner))
	f.other = &models.User{Name: "Mark", Email: "mark@example.com", CreatedAt: epoch, UpdatedAt: epoch}
	require.NoError(t, repo.CreateUser(ctx, f.other))

	f.board = &models.Board{
		Title:      "Roadmap",
		Background: models.DefaultBackground,
		OwnerID:    f.owner.ID,
		CreatedAt:  epoch,
		UpdatedAt:  epoch,
	}
	require.NoError(t, repo.CreateBoard(ctx, f.board))
	return f
}

func (f *fixture) column(t *testing.T, title string, order int) *models.Column {
	t.Helper()
	col := &models.Column{BoardID: f.board.ID, Title: title, Order: order, CreatedAt: at(order), UpdatedAt: at(order)}
	require.NoError(t, f.repo.CreateColumn(f.ctx, col))
	return col
}

func (f *fixture) card(t *testing.T, col *models.Column, title string, order int) *models.Card {
	t.Helper()
	card := &models.Card{
		BoardID:   f.board.ID,
		ColumnID:  col.ID,
		Title:     title,
		Order:        order,
		CreatedAt:    epoch,
		UpdatedAt:    epoch,
		PositionedAt: epoch,
	}
	require.NoError(t, f.repo.CreateCard(f.ctx, card))
	return card
}

func cardTitles(cards []*models.Card) []string {
	titles := make([]string, len(cards))
	for i, c := range cards {
		titles[i] = c.Title
	}
	return titles
}

func columnTitles(columns []*models.Column) []string {
	titles := make([]string, len(columns))
	for i, c := range columns {
		titles[i] = c.Title
	}
	return titles
}

// runContract exercises behavior every Repository implementation must share.
func runContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	t.Run("users", func(t *testing.T) {
		f := newFixture(t, newRepo(t))

		got, err := f.repo.GetUserByEmail(f.ctx, "olive@example.com")
		require.NoError(t, err)
		assert.Equal(t, f.owner.ID, got.ID)
		assert.Empty(t, got.Favorites)
		assert.Empty(t, got.RecentlyViewed)

		dup := &models.User{Name: "Again", Email: "olive@example.com", CreatedAt: epoch, UpdatedAt: epoch}
		assert.ErrorIs(t, f.repo.CreateUser(f.ctx, dup), ErrDuplicate)

		_, err = f.repo.GetUser(f.ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("credentials", func(t *testing.T) {
		f := newFixture(t, newRepo(t))

		kim := &models.User{Name: "Kim", Email: "kim@example.com", CreatedAt: epoch, UpdatedAt: epoch}
		creds := &models.Credentials{Email: kim.Email, PasswordHash: "hash", CreatedAt: epoch}
		require.NoError(t, f.repo.CreateAccount(f.ctx, kim, creds))
		assert.NotEmpty(t, kim.ID)

		got, err := f.repo.GetCredentialsByEmail(f.ctx, kim.Email)
		require.NoError(t, err)
		assert.Equal(t, "hash", got.PasswordHash)
		assert.Equal(t, kim.ID, got.UserID)

		// The user row is written, then the credentials clash: nothing is kept.
		lee := &models.User{Name: "Lee", Email: "lee@example.com", CreatedAt: epoch, UpdatedAt: epoch}
		clash := &models.Credentials{Email: kim.Email, PasswordHash: "other", CreatedAt: epoch}
		assert.ErrorIs(t, f.repo.CreateAccount(f.ctx, lee, clash), ErrDuplicate)
		_, err = f.repo.GetUserByEmail(f.ctx, lee.Email)
		assert.ErrorIs(t, err, ErrNotFound)

		// An email already taken by a user leaves no credentials behind.
		taken := &models.User{Name: "Olive", Email: f.owner.Email, CreatedAt: epoch, UpdatedAt: epoch}
		assert.ErrorIs(t, f.repo.CreateAccount(f.ctx, taken,
			&models.Credentials{Email: f.owner.Email, PasswordHash: "hash", CreatedAt: epoch}), ErrDuplicate)
		_, err = f.repo.GetCredentialsByEmail(f.ctx, f.owner.Email)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = f.repo.GetCredentialsByEmail(f.ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("favorites", func(t *testing.T) {
		f := newFixture(t, newRepo(t))

		require.NoError(t, f.repo.SetFavorite(f.ctx, f.owner.ID, f.board.ID, true, at(1)))
		require.NoError(t, f.repo.SetFavorite(f.ctx, f.owner.ID, f.board.ID, true, at(2)))
		user, err := f.repo.GetUser(f.ctx, f.owner.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{f.board.ID}, user.Favorites)
		assert.True(t, user.IsFavorite(f.board.ID))

		require.NoError(t, f.repo.SetFavorite(f.ctx, f.owner.ID, f.board.ID, false, at(3)))
		user, err = f.repo.GetUser(f.ctx, f.owner.ID)
		require.NoError(t, err)
		assert.Empty(t, user.Favorites)

		assert.ErrorIs(t, f.repo.SetFavorite(f.ctx, "missing", f.board.ID, true, at(4)), ErrNotFound)
	})

	t.Run("recently viewed is most recent first and trimmed", func(t *testing.T) {
		f := newFixture(t, newRepo(t))

		ids := []string{f.board.ID}
		for i := 0; i < 3; i++ {
			b := &models.Board{Title: "Extra", Background: models.DefaultBackground, OwnerID: f.owner.ID, CreatedAt: epoch, UpdatedAt: epoch}
			require.NoError(t, f.repo.CreateBoard(f.ctx, b))
			ids = append(ids, b.ID)
		}

		for i, id := range ids {
			require.NoError(t, f.repo.RecordView(f.ctx, f.owner.ID, id, at(i+1), 3))
		}
		// Revisit the second board.
		require.NoError(t, f.repo.RecordView(f.ctx, f.owner.ID, ids[1], at(10), 3))

		user, err := f.repo.GetUser(f.ctx, f.owner.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{ids[1], ids[3], ids[2]}, user.RecentlyViewed)
	})

	t.Run("board members", func(t *testing.T) {
		f := newFixture(t, newRepo(t))

		member := models.BoardMember{UserID: f.other.ID, Role: models.RoleViewer, AddedAt: at(1)}
		require.NoError(t, f.repo.AddMember(f.ctx, f.board.ID, member))
		assert.ErrorIs(t, f.repo.AddMember(f.ctx, f.board.ID, member), ErrDuplicate)

		boards, err := f.repo.ListBoardsByMember(f.ctx, f.other.ID)
		require.NoError(t, err)
		require.Len(t, boards, 1)
		assert.Equal(t, f.board.ID, boards[0].ID)

		require.NoError(t, f.repo.UpdateMemberRole(f.ctx, f.board.ID, f.other.ID, models.RoleEditor))
		board, err := f.repo.GetBoard(f.ctx, f.board.ID)
		require.NoError(t, err)
		m, ok := board.Member(f.other.ID)
		require.True(t, ok)
		assert.Equal(t, models.RoleEditor, m.Role)
		assert.Equal(t, []string{f.other.ID}, board.MemberIDs())

		require.NoError(t, f.repo.RemoveMember(f.ctx, f.board.ID, f.other.ID))
		assert.ErrorIs(t, f.repo.RemoveMember(f.ctx, f.board.ID, f.other.ID), ErrNotFound)
		assert.ErrorIs(t, f.repo.UpdateMemberRole(f.ctx, f.board.ID, f.other.ID, models.RoleViewer), ErrNotFound)

		boards, err = f.repo.ListBoardsByMember(f.ctx, f.other.ID)
		require.NoError(t, err)
		assert.Empty(t, boards)

		assert.ErrorIs(t, f.repo.AddMember(f.ctx, "missing", member), ErrNotFound)
	})

	t.Run("board update and touch", func(t *testing.T) {
		f := newFixture(t, newRepo(t))

		f.board.Title = "Renamed"
		f.board.Background = "gradient-board-3"
		f.board.UpdatedAt = at(5)
		require.NoError(t, f.repo.UpdateBoard(f.ctx, f.board))
		require.NoError(t, f.repo.TouchBoard(f.ctx, f.board.ID, at(9)))

		got, err := f.repo.GetBoard(f.ctx, f.board.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Title)
		assert.Equal(t, "gradient-board-3", got.Background)
		assert.True(t, got.UpdatedAt.Equal(at(9)))

		owned, err := f.repo.ListBoardsByOwner(f.ctx, f.owner.ID)
		require.NoError(t, err)
		assert.Len(t, owned, 1)

		assert.ErrorIs(t, f.repo.TouchBoard(f.ctx, "missing", at(1)), ErrNotFound)
	})

	t.Run("columns are listed by position", func(t *testing.T) {
		f := newFixture(t, newRepo(t))

		done := f.column(t, "Done", 2)
		todo := f.column(t, "To Do", 0)
		doing := f.column(t, "Doing", 1)

		cols, err := f.repo.ListColumns(f.ctx, f.board.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"To Do", "Doing", "Done"}, columnTitles(cols))

		require.NoError(t, f.repo.UpdateColumnPosition(f.ctx, done.ID, 0, at(10)))
		require.NoError(t, f.repo.UpdateColumnPosition(f.ctx, todo.ID, 1, at(10)))
		require.NoError(t, f.repo.UpdateColumnPosition(f.ctx, doing.ID, 5, at(10)))
		cols, err = f.repo.ListColumns(f.ctx, f.board.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"Done", "To Do", "Doing"}, columnTitles(cols))

		doing.Title = "In Progress"
		doing.UpdatedAt = at(11)
		require.NoError(t, f.repo.UpdateColumn(f.ctx, doing))
		got, err := f.repo.GetColumn(f.ctx, doing.ID)
		require.NoError(t, err)
		assert.Equal(t, "In Progress", got.Title)
		assert.Equal(t, 5, got.Order)

		err = f.repo.CreateColumn(f.ctx, &models.Column{BoardID: "missing", Title: "x", CreatedAt: epoch, UpdatedAt: epoch})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("cards move between columns", func(t *testing.T) {
		f := newFixture(t, newRepo(t))

		todo := f.column(t, "To Do", 0)
		done := f.column(t, "Done", 1)
		a := f.card(t, todo, "A", 0)
		f.card(t, todo, "B", 1)
		c := f.card(t, done, "C", 0)

		require.NoError(t, f.repo.UpdateCardPosition(f.ctx, a.ID, done.ID, 0, at(5)))

		left, err := f.repo.ListCardsByColumn(f.ctx, todo.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"B"}, cardTitles(left))

		// Equal ranks: the most recently positioned card comes first.
		right, err := f.repo.ListCardsByColumn(f.ctx, done.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "C"}, cardTitles(right))

		all, err := f.repo.ListCards(f.ctx, f.board.ID)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		got, err := f.repo.GetCard(f.ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, done.ID, got.ColumnID)

		got.Title = "A2"
		got.Description = "details"
		got.UpdatedAt = at(6)
		require.NoError(t, f.repo.UpdateCard(f.ctx, got))
		got, err = f.repo.GetCard(f.ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "A2", got.Title)
		assert.Equal(t, "details", got.Description)
		assert.True(t, got.PositionedAt.Equal(at(5)), "positioned_at = %v", got.PositionedAt)

		// Content edits leave the tie-break alone.
		c.Description = "later"
		c.UpdatedAt = at(8)
		require.NoError(t, f.repo.UpdateCard(f.ctx, c))
		right, err = f.repo.ListCardsByColumn(f.ctx, done.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"A2", "C"}, cardTitles(right))

		require.NoError(t, f.repo.DeleteCard(f.ctx, a.ID))
		assert.ErrorIs(t, f.repo.DeleteCard(f.ctx, a.ID), ErrNotFound)
		assert.ErrorIs(t, f.repo.UpdateCardPosition(f.ctx, a.ID, todo.ID, 0, at(7)), ErrNotFound)
	})

	t.Run("deleting a column deletes its cards", func(t *testing.T) {
		f := newFixture(t, newRepo(t))

		todo := f.column(t, "To Do", 0)
		card := f.card(t, todo, "A", 0)

		require.NoError(t, f.repo.DeleteColumn(f.ctx, todo.ID))
		_, err := f.repo.GetCard(f.ctx, card.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = f.repo.GetColumn(f.ctx, todo.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("deleting a board cascades", func(t *testing.T) {
		f := newFixture(t, newRepo(t))

		todo := f.column(t, "To Do", 0)
		card := f.card(t, todo, "A", 0)
		require.NoError(t, f.repo.AddMember(f.ctx, f.board.ID,
			models.BoardMember{UserID: f.other.ID, Role: models.RoleEditor, AddedAt: at(1)}))
		require.NoError(t, f.repo.SetFavorite(f.ctx, f.other.ID, f.board.ID, true, at(2)))
		require.NoError(t, f.repo.RecordView(f.ctx, f.other.ID, f.board.ID, at(3), 10))

		require.NoError(t, f.repo.DeleteBoard(f.ctx, f.board.ID))

		_, err := f.repo.GetBoard(f.ctx, f.board.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = f.repo.GetColumn(f.ctx, todo.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = f.repo.GetCard(f.ctx, card.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		boards, err := f.repo.ListBoardsByMember(f.ctx, f.other.ID)
		require.NoError(t, err)
		assert.Empty(t, boards)

		user, err := f.repo.GetUser(f.ctx, f.other.ID)
		require.NoError(t, err)
		assert.Empty(t, user.Favorites)
		assert.Empty(t, user.RecentlyViewed)

		assert.ErrorIs(t, f.repo.DeleteBoard(f.ctx, f.board.ID), ErrNotFound)
	})
}

func TestMemoryRepository(t *testing.T) {
	runContract(t, func(t *testing.T) Repository {
		return NewMemoryRepository()
	})
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	f := newFixture(t, NewMemoryRepository())

	got, err := f.repo.GetBoard(f.ctx, f.board.ID)
	require.NoError(t, err)
	got.Title = "mutated"
	got.Members = append(got.Members, models.BoardMember{UserID: "x", Role: models.RoleViewer})

	again, err := f.repo.GetBoard(f.ctx, f.board.ID)
	require.NoError(t, err)
	assert.Equal(t, "Roadmap", again.Title)
	assert.Empty(t, again.Members)
}
