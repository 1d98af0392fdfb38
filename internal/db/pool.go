// Package db opens the sqlx connections the SQL entity store runs on.
package db

import "github.com/jmoiron/sqlx"

// Pool pairs a write connection pool with a read pool.
//
// SQLite gets a single-connection writer and a multi-connection read-only
// reader (WAL lets them run side by side). PostgreSQL uses one pool for both.
type Pool struct {
	writer *sqlx.DB
	reader *sqlx.DB
}

// NewPool creates a Pool from separate writer and reader connections.
func NewPool(writer, reader *sqlx.DB) *Pool {
	return &Pool{writer: writer, reader: reader}
}

// Writer is used for INSERT, UPDATE, DELETE and transactions.
func (p *Pool) Writer() *sqlx.DB { return p.writer }

// Reader is used for SELECT queries.
func (p *Pool) Reader() *sqlx.DB { return p.reader }

// DriverName returns the database/sql driver name shared by both pools.
func (p *Pool) DriverName() string { return p.writer.DriverName() }

// Close closes both pools.
func (p *Pool) Close() error {
	wErr := p.writer.Close()
	if p.reader != p.writer {
		if rErr := p.reader.Close(); rErr != nil && wErr == nil {
			return rErr
		}
	}
	return wErr
}
