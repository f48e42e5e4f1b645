package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 1, c.Version)
	assert.Equal(t, []string{"Python Developer", "Java Developer", "HR", "Marketing", "Pharmacy"}, c.RoleNames())
	assert.True(t, c.HasQualification("MCA"))
	assert.False(t, c.HasQualification("PhD"))

	role, ok := c.Lookup("Python Developer")
	require.True(t, ok)
	assert.Equal(t, "IT", role.Category)
	assert.Len(t, role.Questions, 3)
	assert.Equal(t, 150, role.MinAnswerLength)
	assert.Contains(t, role.Keywords, "python")

	_, ok = c.Lookup("Astronaut")
	assert.False(t, ok)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	err := os.WriteFile(path, []byte(`
version: 2
qualifications: [B.Sc, Other]
roles:
  - name: Data Engineer
    category: IT
    questions:
      - Describe a pipeline you built
    keywords: [spark, sql]
    min_answer_length: 40
    min_score: 20
`), 0o644)
	require.NoError(t, err)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, c.Version)
	role, ok := c.Lookup("Data Engineer")
	require.True(t, ok)
	assert.Equal(t, 40, role.MinAnswerLength)
	assert.Equal(t, 20, role.MinScore)
	assert.Equal(t, []string{"spark", "sql"}, role.Keywords)
}

func TestLoad_SchemaViolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.json")
	err := os.WriteFile(path, []byte(`{
		"version": 1,
		"qualifications": ["Other"],
		"roles": [{"name": "Ops", "questions": ["a", "b", "c", "d"]}]
	}`), 0o644)
	require.NoError(t, err)

	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoad_DuplicateRole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.json")
	err := os.WriteFile(path, []byte(`{
		"version": 1,
		"qualifications": ["Other"],
		"roles": [
			{"name": "Ops", "questions": []},
			{"name": "Ops", "questions": []}
		]
	}`), 0o644)
	require.NoError(t, err)

	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "duplicate role")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
