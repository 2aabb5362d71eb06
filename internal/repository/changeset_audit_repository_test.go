package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-admin-console/internal/models"
)

func newAuditRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestChangeSetAuditRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()

	repo := NewChangeSetAuditRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO changeset_audits")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	audit := &models.ChangeSetAudit{
		SessionID: "s-1",
		Entity:    "student",
		RecordID:  "stu-1",
		Changes:   []byte(`[{"key":"name"}]`),
	}
	require.NoError(t, repo.Create(context.Background(), audit))
	require.NotEmpty(t, audit.ID)
	require.False(t, audit.SavedAt.IsZero())
	require.JSONEq(t, `{}`, string(audit.Draft))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeSetAuditRepositoryListByRecord(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()

	repo := NewChangeSetAuditRepository(db)
	rows := sqlmock.NewRows([]string{"id", "session_id", "entity", "record_id", "changes", "draft", "request_id", "saved_at"}).
		AddRow("a-2", "s-2", "fee", "fee-1", []byte(`[]`), []byte(`{}`), "req-2", time.Now()).
		AddRow("a-1", "s-1", "fee", "fee-1", []byte(`[]`), []byte(`{}`), "req-1", time.Now().Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("FROM changeset_audits WHERE entity = $1 AND record_id = $2")).
		WithArgs("fee", "fee-1").
		WillReturnRows(rows)

	list, err := repo.ListByRecord(context.Background(), models.AuditFilter{Entity: "fee", RecordID: "fee-1", Limit: 500})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a-2", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
