package store

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mbolis/quick-apply/model"
)

// MaxAnswers is the number of answer columns in tabular backends.
const MaxAnswers = 3

// Columns is the header shared by the CSV and XLSX backends and exports.
var Columns = []string{
	"ID", "Created At",
	"Name", "Phone", "Email",
	"Job Role", "Job Category", "Experience", "Qualification",
	"Country", "State", "District", "Area",
	"Answer 1", "Answer 2", "Answer 3",
	"Resume", "Score", "Result", "Scorer",
}

// Row flattens a into one value per entry of Columns.
func Row(a model.Application) []string {
	answers := make([]string, MaxAnswers)
	copy(answers, a.Answers)

	row := []string{
		strconv.FormatInt(a.ID, 10), a.CreatedAt.UTC().Format(time.RFC3339),
		a.Name, a.Phone, a.Email,
		a.JobRole, a.JobCategory, strconv.Itoa(a.Experience), a.Qualification,
		a.Country, a.State, a.District, a.Area,
	}
	row = append(row, answers...)
	return append(row, a.Resume, strconv.Itoa(a.Score), a.Result, a.Scorer)
}

// ParseRow is the inverse of Row. Short rows, as written by spreadsheet
// tools that trim empty trailing cells, are padded.
func ParseRow(row []string) (a model.Application, err error) {
	if len(row) < len(Columns) {
		row = append(row, make([]string, len(Columns)-len(row))...)
	}

	if a.ID, err = strconv.ParseInt(row[0], 10, 64); err != nil {
		return a, fmt.Errorf("id %q: %w", row[0], err)
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339, row[1]); err != nil {
		return a, fmt.Errorf("created at %q: %w", row[1], err)
	}
	a.Name, a.Phone, a.Email = row[2], row[3], row[4]
	a.JobRole, a.JobCategory = row[5], row[6]
	if a.Experience, err = strconv.Atoi(row[7]); err != nil {
		return a, fmt.Errorf("experience %q: %w", row[7], err)
	}
	a.Qualification = row[8]
	a.Country, a.State, a.District, a.Area = row[9], row[10], row[11], row[12]

	// answer cells keep their position; only the padding Row added is dropped
	answers := row[13 : 13+MaxAnswers]
	n := len(answers)
	for n > 0 && answers[n-1] == "" {
		n--
	}
	a.Answers = append([]string{}, answers[:n]...)

	a.Resume = row[16]
	if a.Score, err = strconv.Atoi(row[17]); err != nil {
		return a, fmt.Errorf("score %q: %w", row[17], err)
	}
	a.Result, a.Scorer = row[18], row[19]
	return a, nil
}
