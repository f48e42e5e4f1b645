package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mbolis/quick-apply/model"
)

type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// rebind rewrites ? placeholders as $n for Postgres.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type SQL struct {
	db      *sql.DB
	dialect Dialect
	ownsDB  bool

	insertQuery string
	listQuery   string
}

func NewSQL(db *sql.DB, dialect Dialect, ownsDB bool) *SQL {
	return &SQL{
		db:      db,
		dialect: dialect,
		ownsDB:  ownsDB,
		insertQuery: dialect.rebind(`
			INSERT INTO application (
				created_at, name, phone, email,
				job_role, job_category, experience, qualification,
				country, state, district, area,
				answers, resume, score, result, scorer
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`),
		listQuery: `
			SELECT
				id, created_at, name, phone, email,
				job_role, job_category, experience, qualification,
				country, state, district, area,
				answers, resume, score, result, scorer
			FROM application
			ORDER BY id`,
	}
}

func (s *SQL) Append(ctx context.Context, a *model.Application) error {
	next := *a
	stamp(&next, 0)

	answers := next.Answers
	if answers == nil {
		answers = []string{}
	}
	answersJson, err := json.Marshal(answers)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, s.insertQuery,
		next.CreatedAt, next.Name, next.Phone, next.Email,
		next.JobRole, next.JobCategory, next.Experience, next.Qualification,
		next.Country, next.State, next.District, next.Area,
		string(answersJson), next.Resume, next.Score, next.Result, next.Scorer,
	).Scan(&next.ID)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit application: %w", err)
	}

	*a = next
	return nil
}

func (s *SQL) List(ctx context.Context) ([]model.Application, error) {
	rows, err := s.db.QueryContext(ctx, s.listQuery)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	apps := []model.Application{}
	for rows.Next() {
		a := model.Application{}
		var answers string
		err = rows.Scan(
			&a.ID, &a.CreatedAt, &a.Name, &a.Phone, &a.Email,
			&a.JobRole, &a.JobCategory, &a.Experience, &a.Qualification,
			&a.Country, &a.State, &a.District, &a.Area,
			&answers, &a.Resume, &a.Score, &a.Result, &a.Scorer,
		)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		if err = json.Unmarshal([]byte(answers), &a.Answers); err != nil {
			return nil, fmt.Errorf("parse answers of application %d: %w", a.ID, err)
		}
		a.CreatedAt = a.CreatedAt.UTC()
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func (s *SQL) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
