package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gotrs-io/deduptickets/internal/docstore"
)

// Store implements docstore.Store over a sqlx.DB using one table per
// container, keyed by (pk, id), with a JSON/JSONB/TEXT body column and
// an etag column used for the conditional-replace contract.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

// Open wraps an already-connected *sqlx.DB. The caller selects the
// dialect that matches the DB driver it opened (postgres/mysql/sqlite).
func Open(db *sqlx.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// EnsureContainer creates the backing table for container if absent.
// Called once per container at startup; the core itself never issues DDL.
func (s *Store) EnsureContainer(ctx context.Context, container string) error {
	_, err := s.db.ExecContext(ctx, s.dialect.CreateTableSQL(container))
	return err
}

func (s *Store) PointRead(ctx context.Context, container, pk, id string) (docstore.Document, error) {
	query := fmt.Sprintf("SELECT pk, id, etag, body FROM %s WHERE pk = %s AND id = %s",
		container, s.dialect.Placeholder(1), s.dialect.Placeholder(2))
	row := rowModel{}
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(query), pk, id); err != nil {
		if err == sql.ErrNoRows {
			return docstore.Document{}, docstore.ErrNotFound
		}
		return docstore.Document{}, err
	}
	return row.toDocument(container), nil
}

func (s *Store) Create(ctx context.Context, doc docstore.Document, uniqueOn string) (docstore.Document, error) {
	if uniqueOn != "" {
		if conflict, err := s.hasUniqueConflict(ctx, doc, uniqueOn); err != nil {
			return docstore.Document{}, err
		} else if conflict {
			return docstore.Document{}, docstore.ErrConflict
		}
	}

	doc.ETag = docstore.ETag(uuid.NewString())
	insert := fmt.Sprintf("INSERT INTO %s (pk, id, etag, body) VALUES (%s, %s, %s, %s)",
		doc.Container, s.dialect.Placeholder(1), s.dialect.Placeholder(2),
		s.dialect.Placeholder(3), s.dialect.Placeholder(4))
	_, err := s.db.ExecContext(ctx, s.db.Rebind(insert), doc.PK, doc.ID, string(doc.ETag), []byte(doc.Body))
	if err != nil {
		return docstore.Document{}, translateUniqueViolation(err)
	}
	return doc, nil
}

func (s *Store) hasUniqueConflict(ctx context.Context, doc docstore.Document, uniqueOn string) (bool, error) {
	val, err := fieldString(doc.Body, uniqueOn)
	if err != nil {
		return false, err
	}
	docs, err := s.Query(ctx, doc.Container, docstore.Query{PK: doc.PK})
	if err != nil {
		return false, err
	}
	for _, d := range docs {
		v, _ := fieldString(d.Body, uniqueOn)
		if v == val {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Upsert(ctx context.Context, doc docstore.Document) (docstore.Document, error) {
	doc.ETag = docstore.ETag(uuid.NewString())
	_, err := s.db.ExecContext(ctx, s.db.Rebind(s.dialect.UpsertSQL(doc.Container)),
		doc.PK, doc.ID, string(doc.ETag), []byte(doc.Body))
	if err != nil {
		return docstore.Document{}, err
	}
	return doc, nil
}

// Replace performs the SQL analogue of an ETag-conditional replace: an
// UPDATE guarded by the previously-read etag. Zero affected rows means
// either the document doesn't exist or the etag is stale; sqlstore
// can't tell which without a follow-up read, so it reports
// ErrPreconditionFailed either way; callers that need to distinguish
// "not found" re-read before retrying, same as the ETag-retry loop in
// clustering.Service already does.
func (s *Store) Replace(ctx context.Context, doc docstore.Document, ifMatch docstore.ETag) (docstore.Document, error) {
	newETag := docstore.ETag(uuid.NewString())
	update := fmt.Sprintf("UPDATE %s SET etag = %s, body = %s WHERE pk = %s AND id = %s AND etag = %s",
		doc.Container, s.dialect.Placeholder(1), s.dialect.Placeholder(2),
		s.dialect.Placeholder(3), s.dialect.Placeholder(4), s.dialect.Placeholder(5))
	res, err := s.db.ExecContext(ctx, s.db.Rebind(update), string(newETag), []byte(doc.Body), doc.PK, doc.ID, string(ifMatch))
	if err != nil {
		return docstore.Document{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return docstore.Document{}, err
	}
	if n == 0 {
		return docstore.Document{}, docstore.ErrPreconditionFailed
	}
	doc.ETag = newETag
	return doc, nil
}

func (s *Store) Query(ctx context.Context, container string, q docstore.Query) ([]docstore.Document, error) {
	sel := fmt.Sprintf("SELECT pk, id, etag, body FROM %s", container)
	var args []any
	if q.PK != "" {
		sel += fmt.Sprintf(" WHERE pk = %s", s.dialect.Placeholder(1))
		args = append(args, q.PK)
	}
	var rows []rowModel
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(sel), args...); err != nil {
		return nil, err
	}
	out := make([]docstore.Document, len(rows))
	for i, r := range rows {
		out[i] = r.toDocument(container)
	}
	return filterEquality(out, q.Params), nil
}

type rowModel struct {
	PK   string `db:"pk"`
	ID   string `db:"id"`
	ETag string `db:"etag"`
	Body []byte `db:"body"`
}

func (r rowModel) toDocument(container string) docstore.Document {
	return docstore.Document{Container: container, PK: r.PK, ID: r.ID, ETag: docstore.ETag(r.ETag), Body: r.Body}
}

func fieldString(body json.RawMessage, field string) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return "", err
	}
	if v, ok := m[field]; ok {
		return fmt.Sprintf("%v", v), nil
	}
	return "", nil
}

func filterEquality(docs []docstore.Document, params map[string]any) []docstore.Document {
	if len(params) == 0 {
		return docs
	}
	out := docs[:0]
	for _, d := range docs {
		var m map[string]any
		if err := json.Unmarshal(d.Body, &m); err != nil {
			continue
		}
		ok := true
		for k, v := range params {
			field := k
			if len(field) > 3 && field[:3] == "eq_" {
				field = field[3:]
			}
			if fmt.Sprintf("%v", m[field]) != fmt.Sprintf("%v", v) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, d)
		}
	}
	return out
}

func translateUniqueViolation(err error) error {
	// Dialect-specific unique-violation messages are intentionally not
	// pattern-matched here: Create() already checks for a conflicting
	// row itself before issuing the INSERT, so a PK violation reaching
	// the driver means a true race between two Create calls on the
	// same (pk, id), also a docstore.ErrConflict.
	return docstore.ErrConflict
}
