package sqlstore

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/deduptickets/internal/docstore"
)

func newMockStore(t *testing.T, dialect Dialect) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return Open(sqlx.NewDb(db, "sqlmock"), dialect), mock
}

func body(t *testing.T, fields map[string]any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(fields)
	require.NoError(t, err)
	return b
}

func TestPointRead(t *testing.T) {
	s, mock := newMockStore(t, PostgresDialect{})

	rows := sqlmock.NewRows([]string{"pk", "id", "etag", "body"}).
		AddRow("2026-01", "t1", "etag-1", []byte(`{"ticketNumber":"TCK-1"}`))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT pk, id, etag, body FROM tickets WHERE pk = $1 AND id = $2")).
		WithArgs("2026-01", "t1").
		WillReturnRows(rows)

	doc, err := s.PointRead(context.Background(), "tickets", "2026-01", "t1")
	require.NoError(t, err)
	assert.Equal(t, docstore.ETag("etag-1"), doc.ETag)
	assert.JSONEq(t, `{"ticketNumber":"TCK-1"}`, string(doc.Body))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPointRead_NotFound(t *testing.T) {
	s, mock := newMockStore(t, PostgresDialect{})

	mock.ExpectQuery("SELECT pk, id, etag, body FROM tickets").
		WillReturnRows(sqlmock.NewRows([]string{"pk", "id", "etag", "body"}))

	_, err := s.PointRead(context.Background(), "tickets", "2026-01", "missing")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestCreate_StampsETag(t *testing.T) {
	s, mock := newMockStore(t, PostgresDialect{})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tickets (pk, id, etag, body) VALUES ($1, $2, $3, $4)")).
		WithArgs("2026-01", "t1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := s.Create(context.Background(), docstore.Document{
		Container: "tickets", PK: "2026-01", ID: "t1",
		Body: body(t, map[string]any{"ticketNumber": "TCK-1"}),
	}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ETag)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UniqueFieldConflict(t *testing.T) {
	s, mock := newMockStore(t, PostgresDialect{})

	existing := sqlmock.NewRows([]string{"pk", "id", "etag", "body"}).
		AddRow("2026-01", "t1", "etag-1", []byte(`{"ticketNumber":"TCK-1"}`))
	mock.ExpectQuery("SELECT pk, id, etag, body FROM tickets WHERE pk =").
		WithArgs("2026-01").
		WillReturnRows(existing)

	_, err := s.Create(context.Background(), docstore.Document{
		Container: "tickets", PK: "2026-01", ID: "t2",
		Body: body(t, map[string]any{"ticketNumber": "TCK-1"}),
	}, "ticketNumber")
	assert.ErrorIs(t, err, docstore.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplace_ETagMatch(t *testing.T) {
	s, mock := newMockStore(t, PostgresDialect{})

	mock.ExpectExec(regexp.QuoteMeta("UPDATE clusters SET etag = $1, body = $2 WHERE pk = $3 AND id = $4 AND etag = $5")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "2026-01", "c1", "etag-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	doc := docstore.Document{Container: "clusters", PK: "2026-01", ID: "c1", Body: body(t, map[string]any{"status": "pending"})}
	replaced, err := s.Replace(context.Background(), doc, "etag-1")
	require.NoError(t, err)
	assert.NotEqual(t, docstore.ETag("etag-1"), replaced.ETag)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplace_StaleETag(t *testing.T) {
	s, mock := newMockStore(t, PostgresDialect{})

	mock.ExpectExec("UPDATE clusters SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	doc := docstore.Document{Container: "clusters", PK: "2026-01", ID: "c1", Body: body(t, map[string]any{"status": "pending"})}
	_, err := s.Replace(context.Background(), doc, "stale")
	assert.ErrorIs(t, err, docstore.ErrPreconditionFailed)
}

func TestUpsert(t *testing.T) {
	s, mock := newMockStore(t, MySQLDialect{})

	mock.ExpectExec("INSERT INTO merges .*ON DUPLICATE KEY UPDATE").
		WithArgs("2026-01", "m1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	doc := docstore.Document{Container: "merges", PK: "2026-01", ID: "m1", Body: body(t, map[string]any{"status": "completed"})}
	upserted, err := s.Upsert(context.Background(), doc)
	require.NoError(t, err)
	assert.NotEmpty(t, upserted.ETag)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_EqualityParamsFilterInProcess(t *testing.T) {
	s, mock := newMockStore(t, SQLiteDialect{})

	rows := sqlmock.NewRows([]string{"pk", "id", "etag", "body"}).
		AddRow("2026-01", "m1", "e1", []byte(`{"clusterId":"c1","status":"completed"}`)).
		AddRow("2026-01", "m2", "e2", []byte(`{"clusterId":"c2","status":"completed"}`))
	mock.ExpectQuery("SELECT pk, id, etag, body FROM merges WHERE pk =").
		WithArgs("2026-01").
		WillReturnRows(rows)

	docs, err := s.Query(context.Background(), "merges", docstore.Query{
		PK:     "2026-01",
		Params: map[string]any{"eq_clusterId": "c1"},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "m1", docs[0].ID)
}

func TestEnsureContainer_IssuesDialectDDL(t *testing.T) {
	s, mock := newMockStore(t, SQLiteDialect{})

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS tickets").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureContainer(context.Background(), "tickets"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
