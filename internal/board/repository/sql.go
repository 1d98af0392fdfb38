package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/taskflow/taskflow/internal/board/models"
	"github.com/taskflow/taskflow/internal/db"
)

// SQLRepository stores boards in SQLite or PostgreSQL. Queries are written with
// '?' placeholders and rebound for the pool's driver.
type SQLRepository struct {
	pool *db.Pool
}

// Ensure SQLRepository implements Repository interface
var _ Repository = (*SQLRepository)(nil)

// NewSQLRepository creates a repository over a migrated pool.
func NewSQLRepository(pool *db.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

// Close closes the underlying connection pools.
func (r *SQLRepository) Close() error {
	return r.pool.Close()
}

type userRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type boardRow struct {
	ID         string    `db:"id"`
	Title      string    `db:"title"`
	Background string    `db:"background"`
	OwnerID    string    `db:"owner_id"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type memberRow struct {
	BoardID string    `db:"board_id"`
	UserID  string    `db:"user_id"`
	Role    string    `db:"role"`
	AddedAt time.Time `db:"added_at"`
}

type credentialsRow struct {
	UserID       string    `db:"user_id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

const (
	boardColumns  = "id, title, background, owner_id, created_at, updated_at"
	columnColumns = "id, board_id, title, position, created_at, updated_at"
	cardColumns   = "id, board_id, column_id, title, description, position, created_at, updated_at, positioned_at"
)

func isUniqueViolation(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func checkAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}

func (r *SQLRepository) exists(ctx context.Context, q sqlx.QueryerContext, table, id string) error {
	var n int
	query := r.pool.Reader().Rebind("SELECT COUNT(*) FROM " + table + " WHERE id = ?")
	if err := sqlx.GetContext(ctx, q, &n, query, id); err != nil {
		return err
	}
	if n == 0 {
		return notFound(table, id)
	}
	return nil
}

func (r *SQLRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.pool.Writer().BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// User operations

// CreateUser stores a new user; the email must be unused.
func (r *SQLRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	w := r.pool.Writer()
	_, err := w.ExecContext(ctx, w.Rebind(`
		INSERT INTO users (id, name, email, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
	`), user.ID, user.Name, user.Email, user.CreatedAt, user.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("user email %s: %w", user.Email, ErrDuplicate)
	}
	return err
}

// GetUser retrieves a user with favorites and recently viewed boards.
func (r *SQLRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, "id", id)
}

// GetUserByEmail retrieves a user by exact email.
func (r *SQLRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, "email", email)
}

func (r *SQLRepository) getUser(ctx context.Context, column, value string) (*models.User, error) {
	rd := r.pool.Reader()
	var row userRow
	err := rd.GetContext(ctx, &row, rd.Rebind(
		"SELECT id, name, email, created_at, updated_at FROM users WHERE "+column+" = ?"), value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", value)
	}
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:             row.ID,
		Name:           row.Name,
		Email:          row.Email,
		Favorites:      []string{},
		RecentlyViewed: []string{},
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if err := rd.SelectContext(ctx, &user.Favorites, rd.Rebind(
		"SELECT board_id FROM user_favorites WHERE user_id = ? ORDER BY created_at, board_id"), row.ID); err != nil {
		return nil, err
	}
	if err := rd.SelectContext(ctx, &user.RecentlyViewed, rd.Rebind(
		"SELECT board_id FROM user_recent_boards WHERE user_id = ? ORDER BY viewed_at DESC, board_id"), row.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// SetFavorite adds boardID to or removes it from the user's favorites.
func (r *SQLRepository) SetFavorite(ctx context.Context, userID, boardID string, favorite bool, at time.Time) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.exists(ctx, tx, "users", userID); err != nil {
			return err
		}
		var err error
		if favorite {
			_, err = tx.ExecContext(ctx, tx.Rebind(`
				INSERT INTO user_favorites (user_id, board_id, created_at) VALUES (?, ?, ?)
				ON CONFLICT (user_id, board_id) DO NOTHING
			`), userID, boardID, at)
		} else {
			_, err = tx.ExecContext(ctx, tx.Rebind(
				"DELETE FROM user_favorites WHERE user_id = ? AND board_id = ?"), userID, boardID)
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind("UPDATE users SET updated_at = ? WHERE id = ?"), at, userID)
		return err
	})
}

// RecordView moves boardID to the front of the user's recently viewed list and
// trims it to limit entries.
func (r *SQLRepository) RecordView(ctx context.Context, userID, boardID string, at time.Time, limit int) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.exists(ctx, tx, "users", userID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO user_recent_boards (user_id, board_id, viewed_at) VALUES (?, ?, ?)
			ON CONFLICT (user_id, board_id) DO UPDATE SET viewed_at = excluded.viewed_at
		`), userID, boardID, at); err != nil {
			return err
		}
		if limit > 0 {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`
				DELETE FROM user_recent_boards
				WHERE user_id = ? AND board_id NOT IN (
					SELECT board_id FROM user_recent_boards
					WHERE user_id = ? ORDER BY viewed_at DESC, board_id LIMIT ?
				)
			`), userID, userID, limit); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, tx.Rebind("UPDATE users SET updated_at = ? WHERE id = ?"), at, userID)
		return err
	})
}

// Credential operations

// CreateAccount inserts the user and its credentials in one transaction.
func (r *SQLRepository) CreateAccount(ctx context.Context, user *models.User, creds *models.Credentials) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	creds.UserID = user.ID
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO users (id, name, email, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		`), user.ID, user.Name, user.Email, user.CreatedAt, user.UpdatedAt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO credentials (user_id, email, password_hash, created_at) VALUES (?, ?, ?, ?)
		`), creds.UserID, creds.Email, creds.PasswordHash, creds.CreatedAt)
		return err
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("account %s: %w", creds.Email, ErrDuplicate)
	}
	return err
}

// GetCredentialsByEmail retrieves the credentials registered for email.
func (r *SQLRepository) GetCredentialsByEmail(ctx context.Context, email string) (*models.Credentials, error) {
	rd := r.pool.Reader()
	var row credentialsRow
	err := rd.GetContext(ctx, &row, rd.Rebind(
		"SELECT user_id, email, password_hash, created_at FROM credentials WHERE email = ?"), email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("credentials", email)
	}
	if err != nil {
		return nil, err
	}
	return &models.Credentials{
		UserID:       row.UserID,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt,
	}, nil
}

// Board operations

// CreateBoard inserts the board row and its initial members in one transaction.
func (r *SQLRepository) CreateBoard(ctx context.Context, board *models.Board) error {
	if board.ID == "" {
		board.ID = uuid.New().String()
	}
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO boards (id, title, background, owner_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		`), board.ID, board.Title, board.Background, board.OwnerID, board.CreatedAt, board.UpdatedAt); err != nil {
			return err
		}
		for _, m := range board.Members {
			if err := insertMember(ctx, tx, board.ID, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertMember(ctx context.Context, tx *sqlx.Tx, boardID string, m models.BoardMember) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO board_members (board_id, user_id, role, added_at) VALUES (?, ?, ?, ?)
	`), boardID, m.UserID, string(m.Role), m.AddedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("member %s on board %s: %w", m.UserID, boardID, ErrDuplicate)
	}
	return err
}

// GetBoard retrieves a board with its members.
func (r *SQLRepository) GetBoard(ctx context.Context, id string) (*models.Board, error) {
	rd := r.pool.Reader()
	var row boardRow
	err := rd.GetContext(ctx, &row, rd.Rebind("SELECT "+boardColumns+" FROM boards WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("board", id)
	}
	if err != nil {
		return nil, err
	}
	boards, err := r.withMembers(ctx, []boardRow{row})
	if err != nil {
		return nil, err
	}
	return boards[0], nil
}

func (r *SQLRepository) withMembers(ctx context.Context, rows []boardRow) ([]*models.Board, error) {
	rd := r.pool.Reader()
	boards := make([]*models.Board, 0, len(rows))
	for _, row := range rows {
		var members []memberRow
		if err := rd.SelectContext(ctx, &members, rd.Rebind(`
			SELECT board_id, user_id, role, added_at FROM board_members
			WHERE board_id = ? ORDER BY added_at, user_id
		`), row.ID); err != nil {
			return nil, err
		}
		board := &models.Board{
			ID:         row.ID,
			Title:      row.Title,
			Background: row.Background,
			OwnerID:    row.OwnerID,
			Members:    make([]models.BoardMember, 0, len(members)),
			CreatedAt:  row.CreatedAt,
			UpdatedAt:  row.UpdatedAt,
		}
		for _, m := range members {
			board.Members = append(board.Members, models.BoardMember{
				UserID:  m.UserID,
				Role:    models.MemberRole(m.Role),
				AddedAt: m.AddedAt,
			})
		}
		boards = append(boards, board)
	}
	return boards, nil
}

// UpdateBoard writes the board's title, background and updatedAt.
func (r *SQLRepository) UpdateBoard(ctx context.Context, board *models.Board) error {
	w := r.pool.Writer()
	res, err := w.ExecContext(ctx, w.Rebind(
		"UPDATE boards SET title = ?, background = ?, updated_at = ? WHERE id = ?"),
		board.Title, board.Background, board.UpdatedAt, board.ID)
	if err != nil {
		return err
	}
	return checkAffected(res, "board", board.ID)
}

// TouchBoard sets the board's updatedAt.
func (r *SQLRepository) TouchBoard(ctx context.Context, id string, at time.Time) error {
	w := r.pool.Writer()
	res, err := w.ExecContext(ctx, w.Rebind("UPDATE boards SET updated_at = ? WHERE id = ?"), at, id)
	if err != nil {
		return err
	}
	return checkAffected(res, "board", id)
}

// DeleteBoard deletes a board and everything that references it in one transaction.
func (r *SQLRepository) DeleteBoard(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"cards", "board_columns", "board_members", "user_favorites", "user_recent_boards"} {
			if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM "+table+" WHERE board_id = ?"), id); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM boards WHERE id = ?"), id)
		if err != nil {
			return err
		}
		return checkAffected(res, "board", id)
	})
}

// ListBoardsByOwner returns the boards ownerID created.
func (r *SQLRepository) ListBoardsByOwner(ctx context.Context, ownerID string) ([]*models.Board, error) {
	rd := r.pool.Reader()
	var rows []boardRow
	if err := rd.SelectContext(ctx, &rows, rd.Rebind(
		"SELECT "+boardColumns+" FROM boards WHERE owner_id = ?"), ownerID); err != nil {
		return nil, err
	}
	return r.withMembers(ctx, rows)
}

// ListBoardsByMember returns the boards userID is a member of.
func (r *SQLRepository) ListBoardsByMember(ctx context.Context, userID string) ([]*models.Board, error) {
	rd := r.pool.Reader()
	var rows []boardRow
	if err := rd.SelectContext(ctx, &rows, rd.Rebind(`
		SELECT b.id, b.title, b.background, b.owner_id, b.created_at, b.updated_at
		FROM boards b JOIN board_members m ON m.board_id = b.id
		WHERE m.user_id = ?
	`), userID); err != nil {
		return nil, err
	}
	return r.withMembers(ctx, rows)
}

// Member operations

// AddMember appends member to the board's member list.
func (r *SQLRepository) AddMember(ctx context.Context, boardID string, member models.BoardMember) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.exists(ctx, tx, "boards", boardID); err != nil {
			return err
		}
		return insertMember(ctx, tx, boardID, member)
	})
}

// UpdateMemberRole changes an existing member's role.
func (r *SQLRepository) UpdateMemberRole(ctx context.Context, boardID, userID string, role models.MemberRole) error {
	w := r.pool.Writer()
	res, err := w.ExecContext(ctx, w.Rebind(
		"UPDATE board_members SET role = ? WHERE board_id = ? AND user_id = ?"), string(role), boardID, userID)
	if err != nil {
		return err
	}
	return checkAffected(res, "member", userID)
}

// RemoveMember removes userID from the board's member list.
func (r *SQLRepository) RemoveMember(ctx context.Context, boardID, userID string) error {
	w := r.pool.Writer()
	res, err := w.ExecContext(ctx, w.Rebind(
		"DELETE FROM board_members WHERE board_id = ? AND user_id = ?"), boardID, userID)
	if err != nil {
		return err
	}
	return checkAffected(res, "member", userID)
}

// Column operations

// CreateColumn creates a new column
func (r *SQLRepository) CreateColumn(ctx context.Context, column *models.Column) error {
	if column.ID == "" {
		column.ID = uuid.New().String()
	}
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.exists(ctx, tx, "boards", column.BoardID); err != nil {
			return err
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO board_columns (id, board_id, title, position, created_at, updated_at)
			VALUES (:id, :board_id, :title, :position, :created_at, :updated_at)
		`, column)
		return err
	})
}

// GetColumn retrieves a column by ID
func (r *SQLRepository) GetColumn(ctx context.Context, id string) (*models.Column, error) {
	rd := r.pool.Reader()
	column := &models.Column{}
	err := rd.GetContext(ctx, column, rd.Rebind("SELECT "+columnColumns+" FROM board_columns WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("column", id)
	}
	if err != nil {
		return nil, err
	}
	return column, nil
}

// UpdateColumn writes the column's title and updatedAt.
func (r *SQLRepository) UpdateColumn(ctx context.Context, column *models.Column) error {
	w := r.pool.Writer()
	res, err := w.ExecContext(ctx, w.Rebind(
		"UPDATE board_columns SET title = ?, updated_at = ? WHERE id = ?"), column.Title, column.UpdatedAt, column.ID)
	if err != nil {
		return err
	}
	return checkAffected(res, "column", column.ID)
}

// UpdateColumnPosition sets a single column's rank.
func (r *SQLRepository) UpdateColumnPosition(ctx context.Context, id string, order int, at time.Time) error {
	w := r.pool.Writer()
	res, err := w.ExecContext(ctx, w.Rebind(
		"UPDATE board_columns SET position = ?, updated_at = ? WHERE id = ?"), order, at, id)
	if err != nil {
		return err
	}
	return checkAffected(res, "column", id)
}

// DeleteColumn deletes a column and its cards.
func (r *SQLRepository) DeleteColumn(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM cards WHERE column_id = ?"), id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM board_columns WHERE id = ?"), id)
		if err != nil {
			return err
		}
		return checkAffected(res, "column", id)
	})
}

// ListColumns returns a board's columns in display order.
func (r *SQLRepository) ListColumns(ctx context.Context, boardID string) ([]*models.Column, error) {
	rd := r.pool.Reader()
	var columns []*models.Column
	if err := rd.SelectContext(ctx, &columns, rd.Rebind(
		"SELECT "+columnColumns+" FROM board_columns WHERE board_id = ? ORDER BY position, created_at, id"), boardID); err != nil {
		return nil, err
	}
	return columns, nil
}

// Card operations

// CreateCard creates a new card
func (r *SQLRepository) CreateCard(ctx context.Context, card *models.Card) error {
	if card.ID == "" {
		card.ID = uuid.New().String()
	}
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.exists(ctx, tx, "board_columns", card.ColumnID); err != nil {
			return err
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO cards (id, board_id, column_id, title, description, position, created_at, updated_at, positioned_at)
			VALUES (:id, :board_id, :column_id, :title, :description, :position, :created_at, :updated_at, :positioned_at)
		`, card)
		return err
	})
}

// GetCard retrieves a card by ID
func (r *SQLRepository) GetCard(ctx context.Context, id string) (*models.Card, error) {
	rd := r.pool.Reader()
	card := &models.Card{}
	err := rd.GetContext(ctx, card, rd.Rebind("SELECT "+cardColumns+" FROM cards WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("card", id)
	}
	if err != nil {
		return nil, err
	}
	return card, nil
}

// UpdateCard writes the card's title, description and updatedAt.
func (r *SQLRepository) UpdateCard(ctx context.Context, card *models.Card) error {
	w := r.pool.Writer()
	res, err := w.ExecContext(ctx, w.Rebind(
		"UPDATE cards SET title = ?, description = ?, updated_at = ? WHERE id = ?"),
		card.Title, card.Description, card.UpdatedAt, card.ID)
	if err != nil {
		return err
	}
	return checkAffected(res, "card", card.ID)
}

// UpdateCardPosition sets a single card's column and rank in one write.
func (r *SQLRepository) UpdateCardPosition(ctx context.Context, id, columnID string, order int, at time.Time) error {
	w := r.pool.Writer()
	res, err := w.ExecContext(ctx, w.Rebind(
		"UPDATE cards SET column_id = ?, position = ?, updated_at = ?, positioned_at = ? WHERE id = ?"),
		columnID, order, at, at, id)
	if err != nil {
		return err
	}
	return checkAffected(res, "card", id)
}

// DeleteCard deletes a card by ID
func (r *SQLRepository) DeleteCard(ctx context.Context, id string) error {
	w := r.pool.Writer()
	res, err := w.ExecContext(ctx, w.Rebind("DELETE FROM cards WHERE id = ?"), id)
	if err != nil {
		return err
	}
	return checkAffected(res, "card", id)
}

// ListCards returns all cards on a board.
func (r *SQLRepository) ListCards(ctx context.Context, boardID string) ([]*models.Card, error) {
	return r.listCards(ctx, "board_id", boardID)
}

// ListCardsByColumn returns a column's cards in display order.
func (r *SQLRepository) ListCardsByColumn(ctx context.Context, columnID string) ([]*models.Card, error) {
	return r.listCards(ctx, "column_id", columnID)
}

func (r *SQLRepository) listCards(ctx context.Context, column, value string) ([]*models.Card, error) {
	rd := r.pool.Reader()
	var cards []*models.Card
	if err := rd.SelectContext(ctx, &cards, rd.Rebind(
		"SELECT "+cardColumns+" FROM cards WHERE "+column+" = ?"), value); err != nil {
		return nil, err
	}
	models.SortCards(cards)
	return cards, nil
}
