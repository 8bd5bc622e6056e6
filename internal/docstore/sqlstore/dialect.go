// Package sqlstore implements docstore.Store over a relational
// database via jmoiron/sqlx: one small Dialect per backend handling
// only the handful of SQL differences (placeholder style, JSON column
// type, upsert syntax), with all container logic shared in store.go.
package sqlstore

import "fmt"

// Dialect isolates the per-backend SQL differences sqlstore needs.
type Dialect interface {
	// Name identifies the dialect for error messages/logging.
	Name() string
	// Placeholder returns the bind-parameter marker for position n (1-based).
	Placeholder(n int) string
	// JSONColumnType is the column type used for the document body.
	JSONColumnType() string
	// CreateTableSQL returns the DDL for a container's table.
	CreateTableSQL(table string) string
	// UpsertSQL returns an INSERT ... ON CONFLICT/DUPLICATE KEY style
	// statement for unconditional upserts.
	UpsertSQL(table string) string
}

// PostgresDialect targets lib/pq.
type PostgresDialect struct{}

func (PostgresDialect) Name() string { return "postgres" }
func (PostgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (PostgresDialect) JSONColumnType() string { return "jsonb" }
func (PostgresDialect) CreateTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		pk TEXT NOT NULL,
		id TEXT NOT NULL,
		etag TEXT NOT NULL,
		body jsonb NOT NULL,
		PRIMARY KEY (pk, id)
	)`, table)
}
func (PostgresDialect) UpsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (pk, id, etag, body) VALUES ($1, $2, $3, $4)
		ON CONFLICT (pk, id) DO UPDATE SET etag = EXCLUDED.etag, body = EXCLUDED.body`, table)
}

// MySQLDialect targets go-sql-driver/mysql.
type MySQLDialect struct{}

func (MySQLDialect) Name() string { return "mysql" }
func (MySQLDialect) Placeholder(int) string { return "?" }
func (MySQLDialect) JSONColumnType() string { return "JSON" }
func (MySQLDialect) CreateTableSQL(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s ("+
		"pk VARCHAR(32) NOT NULL, "+
		"id VARCHAR(64) NOT NULL, "+
		"etag VARCHAR(64) NOT NULL, "+
		"body JSON NOT NULL, "+
		"PRIMARY KEY (pk, id))", table)
}
func (MySQLDialect) UpsertSQL(table string) string {
	return fmt.Sprintf("INSERT INTO %s (pk, id, etag, body) VALUES (?, ?, ?, ?) "+
		"ON DUPLICATE KEY UPDATE etag = VALUES(etag), body = VALUES(body)", table)
}

// SQLiteDialect targets mattn/go-sqlite3.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string { return "sqlite" }
func (SQLiteDialect) Placeholder(int) string { return "?" }
func (SQLiteDialect) JSONColumnType() string { return "TEXT" }
func (SQLiteDialect) CreateTableSQL(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s ("+
		"pk TEXT NOT NULL, "+
		"id TEXT NOT NULL, "+
		"etag TEXT NOT NULL, "+
		"body TEXT NOT NULL, "+
		"PRIMARY KEY (pk, id))", table)
}
func (SQLiteDialect) UpsertSQL(table string) string {
	return fmt.Sprintf("INSERT INTO %s (pk, id, etag, body) VALUES (?, ?, ?, ?) "+
		"ON CONFLICT(pk, id) DO UPDATE SET etag = excluded.etag, body = excluded.body", table)
}
