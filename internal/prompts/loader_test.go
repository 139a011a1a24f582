package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	ClearCache()

	tests := []struct {
		name    string
		file    string
		key     string
		wantErr string
	}{
		{name: "known prompt", file: TeamFormation, key: "role-analysis"},
		{name: "missing file", file: "nonexistent.json", key: "x", wantErr: "failed to read prompt file"},
		{name: "missing key", file: ProjectPlanner, key: "nonexistent-key", wantErr: "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Get(tt.file, tt.key)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, got, "{{.ProjectTitle}}")
		})
	}
}

func TestMustGet_Panics(t *testing.T) {
	assert.Panics(t, func() { MustGet("nonexistent.json", "x") })
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     map[string]string
		want     string
	}{
		{name: "fills keys", template: "Project {{.Title}} needs {{.Skills}}", data: map[string]string{"Title": "Shop", "Skills": "Go"}, want: "Project Shop needs Go"},
		{name: "repeated key", template: "{{.A}}/{{.A}}", data: map[string]string{"A": "x"}, want: "x/x"},
		{name: "unknown key kept", template: "Hello {{.Name}}", data: map[string]string{}, want: "Hello {{.Name}}"},
		{name: "values are not re-expanded", template: "{{.Description}} by {{.Owner}}", data: map[string]string{"Description": "uses {{.Owner}} syntax", "Owner": "asha"}, want: "uses {{.Owner}} syntax by asha"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.template, tt.data))
		})
	}
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, Placeholders("{{.A}} {{.B}} {{.A}}"))
	assert.Empty(t, Placeholders("no placeholders"))
}

func TestRender(t *testing.T) {
	system, user, err := Render(TeamFormation, "role-analysis", map[string]string{
		"ProjectTitle":   "Shop",
		"RequiredSkills": "Go, Postgres",
		"TeamSize":       "4",
		"Timeline":       "6 weeks",
	})
	require.NoError(t, err)
	assert.Contains(t, system, "JSON")
	assert.Contains(t, user, "Project: Shop")
	assert.Empty(t, Placeholders(user))

	_, _, err = Render(TeamFormation, "missing", nil)
	assert.Error(t, err)
	assert.Panics(t, func() { MustRender(TeamFormation, "missing", nil) })
}

// Every renderable prompt must have a system instruction, and system
// instructions take no placeholders.
func TestPipelinePrompts(t *testing.T) {
	ClearCache()

	expected := map[string][]string{
		TeamFormation:  {"candidate-evaluation", "role-analysis"},
		ProjectPlanner: {"feature-extraction", "milestone-definition", "task-generation"},
	}

	for file, want := range expected {
		names, err := Names(file)
		require.NoError(t, err)
		assert.Equal(t, want, names, file)

		for _, name := range names {
			system := MustGet(file, name+systemSuffix)
			assert.Empty(t, Placeholders(system), "%s/%s-system", file, name)
			assert.NotEmpty(t, Placeholders(MustGet(file, name)), "%s/%s", file, name)
		}
	}
}

func TestCaching(t *testing.T) {
	ClearCache()

	first, err := List(ProjectPlanner)
	require.NoError(t, err)
	second, err := List(ProjectPlanner)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	cacheMu.RLock()
	_, cached := cache[ProjectPlanner]
	cacheMu.RUnlock()
	assert.True(t, cached)
}
