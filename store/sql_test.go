package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialect_Rebind(t *testing.T) {
	assert.Equal(t, "a = ? AND b = ?", SQLite.rebind("a = ? AND b = ?"))
	assert.Equal(t, "a = $1 AND b = $2", Postgres.rebind("a = ? AND b = ?"))
}

func TestSQL_PostgresAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := NewSQL(db, Postgres, true)

	a := application("asha")
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO application")).
		WithArgs(sqlmock.AnyArg(), "asha", a.Phone, a.Email,
			a.JobRole, a.JobCategory, a.Experience, a.Qualification,
			a.Country, a.State, a.District, a.Area,
			`["A list is mutable,\na tuple is not.","An isolated env",""]`,
			a.Resume, a.Score, a.Result, a.Scorer).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(41))
	mock.ExpectCommit()
	mock.ExpectClose()

	require.NoError(t, s.Append(context.Background(), a))
	assert.Equal(t, int64(41), a.ID)

	require.NoError(t, s.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_PostgresAppendRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewSQL(db, Postgres, false)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO application").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	a := application("asha")
	err = s.Append(context.Background(), a)
	assert.ErrorContains(t, err, "insert application")
	assert.Zero(t, a.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_PostgresList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewSQL(db, Postgres, false)

	created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	columns := []string{
		"id", "created_at", "name", "phone", "email",
		"job_role", "job_category", "experience", "qualification",
		"country", "state", "district", "area",
		"answers", "resume", "score", "result", "scorer",
	}
	mock.ExpectQuery("SELECT .* FROM application ORDER BY id").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(1, created, "asha", "98765", "a@x.io", "HR", "NON-IT", 2, "MBA",
				"India", "", "", "", `["x","y"]`, "", 30, "Not Qualified", "llm").
			AddRow(2, created, "ravi", "98766", "r@x.io", "HR", "NON-IT", 5, "MBA",
				"India", "", "", "", `[]`, "", 70, "Qualified", "fallback"))

	apps, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, []string{"x", "y"}, apps[0].Answers)
	assert.Equal(t, "fallback", apps[1].Scorer)
	assert.NoError(t, mock.ExpectationsWereMet())
}
