package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapingest/internal/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		query   string
		want    string
	}{
		{
			name:    "sqlite keeps question marks",
			dialect: DialectSQLite,
			query:   "SELECT * FROM t WHERE a = ? AND b = ?",
			want:    "SELECT * FROM t WHERE a = ? AND b = ?",
		},
		{
			name:    "postgres numbers placeholders",
			dialect: DialectPostgres,
			query:   "SELECT * FROM t WHERE a = ? AND b IN (?, ?)",
			want:    "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)",
		},
		{
			name:    "no placeholders",
			dialect: DialectPostgres,
			query:   "DELETE FROM programs",
			want:    "DELETE FROM programs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(nil, tt.dialect, nil)
			assert.Equal(t, tt.want, s.rebind(tt.query))
		})
	}
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "defaults",
			cfg:  Config{Name: "leapingest"},
			want: "host=localhost port=5432 dbname=leapingest sslmode=disable",
		},
		{
			name: "credentials",
			cfg:  Config{Host: "db", Port: 6432, Name: "ipeds", User: "etl", Password: "secret", SSLMode: "require"},
			want: "host=db port=6432 dbname=ipeds sslmode=require user=etl password=secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildPostgresDSN(tt.cfg))
		})
	}
}

func TestBuildSQLiteDSN(t *testing.T) {
	assert.Contains(t, buildSQLiteDSN(":memory:"), "foreign_keys(1)")
	assert.NotContains(t, buildSQLiteDSN(""), "journal_mode")
	assert.Contains(t, buildSQLiteDSN("/tmp/x.db"), "journal_mode(WAL)")
}

func TestNullTime_Scan(t *testing.T) {
	tests := []struct {
		name    string
		src     any
		valid   bool
		wantErr bool
	}{
		{name: "nil", src: nil},
		{name: "sqlite text", src: "2026-01-01 10:00:00.5+00:00", valid: true},
		{name: "rfc3339 bytes", src: []byte("2026-01-01T10:00:00Z"), valid: true},
		{name: "bare", src: "2026-01-01 10:00:00", valid: true},
		{name: "garbage", src: "yesterday", wantErr: true},
		{name: "wrong type", src: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var nt nullTime
			err := nt.Scan(tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.valid, nt.Valid)
		})
	}
}

func TestSQLStore_NotOpened(t *testing.T) {
	s := New(nil, DialectSQLite, nil)
	ctx := context.Background()

	_, err := s.Institutions().FindOrCreate(ctx, "1")
	assert.EqualError(t, err, "database not opened")
	_, err = s.DeleteAllPrograms(ctx)
	assert.EqualError(t, err, "database not opened")
	_, err = s.CreateRun(ctx, "ipeds")
	assert.EqualError(t, err, "database not opened")
	assert.EqualError(t, s.Migrate(ctx), "database not opened")
	assert.NoError(t, s.Close())
}

func TestEntityTable_Postgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := New(db, DialectPostgres, nil)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO scholarships \(petersons_id, attributes, created_at, updated_at\) VALUES \(\$1, \$2, \$3, \$4\) ON CONFLICT \(petersons_id\) DO NOTHING`).
		WithArgs("42", "{}", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT id, petersons_id, attributes, created_at, updated_at FROM scholarships WHERE petersons_id = \$1`).
		WithArgs("42").
		WillReturnRows(sqlmock.NewRows([]string{"id", "petersons_id", "attributes", "created_at", "updated_at"}).
			AddRow(7, "42", []byte(`{"name":"Gates","amount_max":5000}`), "2026-01-01T00:00:00Z", "2026-01-01T00:00:00Z"))
	mock.ExpectExec(`UPDATE scholarships SET attributes = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs(`{"amount_max":5000,"name":"Fulbright"}`, sqlmock.AnyArg(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Scholarships().Upsert(ctx, "42", mapping.AttributeSet{"name": "Fulbright"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityTable_DeleteRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := New(db, DialectSQLite, nil)

	mock.ExpectQuery(`SELECT petersons_id FROM scholarships`).
		WillReturnRows(sqlmock.NewRows([]string{"petersons_id"}).AddRow("1").AddRow("2"))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM scholarships WHERE petersons_id IN \(\?\)`).
		WithArgs("2").
		WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	_, err = s.Scholarships().DeleteAllExcept(context.Background(), map[string]struct{}{"1": {}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRun_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`INSERT INTO import_runs`).WillReturnError(errors.New("disk full"))

	_, err = New(db, DialectSQLite, nil).CreateRun(context.Background(), "ipeds")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create run")
}
