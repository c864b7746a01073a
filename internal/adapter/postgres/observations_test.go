package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskline/accident-risk-service/internal/domain"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestAppend(t *testing.T) {
	repo, mock := newMockRepository(t)

	occurredAt := time.Date(2018, 1, 5, 8, 15, 0, 0, time.UTC)
	observations := []domain.Observation{
		{Location: "Poblacion", Hour: 8, OccurredAt: occurredAt},
		{Location: "Aplaya", Hour: 17, OccurredAt: occurredAt.Add(9 * time.Hour)},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO observations").
		WithArgs("Poblacion", 8, occurredAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO observations").
		WithArgs("Aplaya", 17, occurredAt.Add(9*time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Append(context.Background(), observations))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendRollsBackOnFailure(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO observations").
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := repo.Append(context.Background(), []domain.Observation{
		{Location: "Poblacion", Hour: 8, OccurredAt: time.Now()},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert observation")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAll(t *testing.T) {
	repo, mock := newMockRepository(t)

	first := time.Date(2018, 1, 5, 8, 15, 0, 0, time.UTC)
	second := time.Date(2018, 7, 21, 17, 40, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT location, hour, occurred_at").
		WillReturnRows(sqlmock.NewRows([]string{"location", "hour", "occurred_at"}).
			AddRow("Poblacion", 8, first).
			AddRow("Aplaya", 17, second))

	observations, err := repo.All(context.Background())
	require.NoError(t, err)
	require.Len(t, observations, 2)

	assert.Equal(t, domain.Observation{Location: "Poblacion", Hour: 8, OccurredAt: first}, observations[0])
	assert.Equal(t, domain.Observation{Location: "Aplaya", Hour: 17, OccurredAt: second}, observations[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllQueryError(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT location, hour, occurred_at").
		WillReturnError(errors.New("relation does not exist"))

	_, err := repo.All(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "select observations")
}

func TestObservationsDelegatesToAll(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT location, hour, occurred_at").
		WillReturnRows(sqlmock.NewRows([]string{"location", "hour", "occurred_at"}))

	observations, err := repo.Observations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, observations)
}
