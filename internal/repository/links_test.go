package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/linksigner/internal/model"
	"github.com/dharsanguruparan/linksigner/internal/storage"
)

type fakeDB struct {
	execSQL  string
	execArgs []any
	execErr  error

	queryArgs []any
	rows      []model.LinkRecord
	rowErr    error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = sql
	f.execArgs = args
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	f.queryArgs = args
	return &fakeRows{recs: f.rows, idx: -1}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.queryArgs = args
	if f.rowErr != nil {
		return fakeRow{err: f.rowErr}
	}
	if len(f.rows) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{rec: f.rows[0]}
}

type fakeRow struct {
	rec model.LinkRecord
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.rec, dest)
}

func assign(rec model.LinkRecord, dest []any) error {
	if len(dest) != 6 {
		return fmt.Errorf("expected 6 columns, got %d", len(dest))
	}
	*dest[0].(*string) = rec.ID
	*dest[1].(*string) = rec.Route
	*dest[2].(*[]string) = rec.SignedKeys
	*dest[3].(*bool) = rec.AllowAddition
	*dest[4].(*time.Time) = rec.ExpiresAt
	*dest[5].(*time.Time) = rec.IssuedAt
	return nil
}

type fakeRows struct {
	recs   []model.LinkRecord
	idx    int
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.recs)
}

func (r *fakeRows) Scan(dest ...any) error { return assign(r.recs[r.idx], dest) }

func sample(id string, issued time.Time) model.LinkRecord {
	return model.LinkRecord{
		ID:            id,
		Route:         "/download",
		SignedKeys:    []string{"file", "link", "expires", "params"},
		AllowAddition: true,
		ExpiresAt:     issued.Add(7 * 24 * time.Hour),
		IssuedAt:      issued,
	}
}

func TestRecord(t *testing.T) {
	db := &fakeDB{}
	repo := NewLinkRepository(db)
	rec := sample("l1", time.Unix(1700000000, 0).UTC())

	require.NoError(t, repo.Record(context.Background(), rec))
	assert.Contains(t, db.execSQL, "ON CONFLICT (id) DO NOTHING")
	assert.Equal(t, []any{"l1", "/download", rec.SignedKeys, true, rec.ExpiresAt, rec.IssuedAt}, db.execArgs)
}

func TestRecordNilKeysStoredAsEmptyArray(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewLinkRepository(db).Record(context.Background(), model.LinkRecord{ID: "l1"}))
	assert.Equal(t, []string{}, db.execArgs[2])
}

func TestRecordWrapsErrors(t *testing.T) {
	boom := errors.New("conn reset")
	err := NewLinkRepository(&fakeDB{execErr: boom}).Record(context.Background(), model.LinkRecord{ID: "l1"})
	assert.ErrorIs(t, err, boom)
}

func TestGet(t *testing.T) {
	local := time.FixedZone("local", 3600)
	rec := sample("l1", time.Unix(1700000000, 0).In(local))
	repo := NewLinkRepository(&fakeDB{rows: []model.LinkRecord{rec}})

	got, err := repo.Get(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, "l1", got.ID)
	assert.Equal(t, time.UTC, got.IssuedAt.Location())
	assert.True(t, got.IssuedAt.Equal(rec.IssuedAt))
}

func TestGetNotFound(t *testing.T) {
	_, err := NewLinkRepository(&fakeDB{}).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	boom := errors.New("timeout")
	_, err = NewLinkRepository(&fakeDB{rowErr: boom}).Get(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestListByRoute(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	db := &fakeDB{rows: []model.LinkRecord{sample("b", base.Add(time.Minute)), sample("a", base)}}
	repo := NewLinkRepository(db)

	got, err := repo.ListByRoute(context.Background(), "/download", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, []any{"/download", 100}, db.queryArgs)
}
