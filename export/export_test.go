package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mbolis/quick-apply/analytics"
	"github.com/mbolis/quick-apply/model"
	"github.com/mbolis/quick-apply/store"
)

func sample() []model.Application {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return []model.Application{
		{ID: 1, CreatedAt: at, Name: "Asha", Email: "asha@example.com", JobRole: "Python Developer",
			Experience: 3, Qualification: "B.Tech", Answers: []string{"a", "b"}, Score: 46, Result: model.ResultQualified, Scorer: "heuristic"},
		{ID: 2, CreatedAt: at, Name: "Ravi, Jr.", Email: "ravi@example.com", JobRole: "HR",
			Experience: 1, Qualification: "MBA", Answers: []string{"line one\nline two"}, Score: 12, Result: model.ResultNotQualified, Scorer: "heuristic"},
	}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, sample()))

	apps, err := store.ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "Ravi, Jr.", apps[1].Name)
	assert.Equal(t, []string{"line one\nline two"}, apps[1].Answers)
}

func TestXLSX(t *testing.T) {
	apps := sample()
	var buf bytes.Buffer
	require.NoError(t, XLSX(&buf, apps, analytics.Summarize(apps, 40)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, store.SheetApplications}, f.GetSheetList())

	rows, err := f.GetRows(store.SheetApplications)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, store.Columns, rows[0])
	assert.Equal(t, "Asha", rows[1][2])

	total, err := f.GetCellValue(SheetSummary, "B2")
	require.NoError(t, err)
	assert.Equal(t, "2", total)
	pass, err := f.GetCellValue(SheetSummary, "A5")
	require.NoError(t, err)
	assert.Equal(t, "Score >= 40", pass)
}

func TestCSV_NeutralizesFormulas(t *testing.T) {
	apps := sample()
	apps[0].Name = `=HYPERLINK("http://evil.example","click")`
	apps[0].Phone = "+91 98765 43210"
	apps[0].Answers = []string{"@SUM(A1)", "- plain dash", "fine"}

	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, apps))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	row := rows[1]
	assert.Equal(t, `'=HYPERLINK("http://evil.example","click")`, row[2])
	assert.Equal(t, "'+91 98765 43210", row[3])
	assert.Equal(t, []string{"'@SUM(A1)", "'- plain dash", "fine"}, row[13:16])
	assert.Equal(t, "asha@example.com", row[4])
}
