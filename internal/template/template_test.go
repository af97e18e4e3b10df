package template

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-qualify/internal/model"
)

func TestRender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message string
		vars    map[string]string
		want    string
	}{
		{
			name:    "single",
			message: "Hi {firstName}, quick call?",
			vars:    map[string]string{"firstName": "Ann"},
			want:    "Hi Ann, quick call?",
		},
		{
			name:    "repeated",
			message: "{firstName} {firstName}",
			vars:    map[string]string{"firstName": "Bo"},
			want:    "Bo Bo",
		},
		{
			name:    "missing var left intact",
			message: "Book: {link}",
			vars:    map[string]string{"firstName": "Bo"},
			want:    "Book: {link}",
		},
		{
			name:    "no vars",
			message: "Hello {x}",
			want:    "Hello {x}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Render(tt.message, tt.vars))
		})
	}
}

func TestValidateCharCount(t *testing.T) {
	t.Parallel()

	r := ValidateCharCount(strings.Repeat("a", 160))
	assert.True(t, r.Valid)
	assert.Equal(t, 160, r.Count)
	assert.Equal(t, 1, r.Segments)

	r = ValidateCharCount(strings.Repeat("a", 161))
	assert.False(t, r.Valid)
	assert.Equal(t, 2, r.Segments)

	r = ValidateCharCount("")
	assert.True(t, r.Valid)
	assert.Equal(t, 0, r.Segments)
}

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	c, err := DefaultCatalog()
	require.NoError(t, err)

	tpl, ok := c.Find("busy_ceo", StageOpener)
	require.True(t, ok)
	assert.Equal(t, "ceo_opener_1", tpl.ID)
	assert.Equal(t, "Hi Ann, save 20+ hrs/week on outbound with AI. Quick call to show you? Reply STOP to opt out -NEXTIER",
		tpl.Render(map[string]string{"firstName": "Ann"}))

	_, ok = c.Find("busy_ceo", Stage("follow_up"))
	assert.False(t, ok)

	_, ok = c.Persona("deal_hunter")
	assert.True(t, ok)

	for _, tpl := range c.Templates {
		assert.True(t, ValidateCharCount(tpl.Message).Valid, tpl.ID)
	}
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	yml := `
catalog:
  personas:
    - { id: plumber, name: Plumber }
  templates:
    - id: plumber_opener
      persona_id: plumber
      stage: opener
      message: "Hi {firstName}"
`
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	tpl, ok := c.Get("plumber_opener")
	require.True(t, ok)
	assert.Equal(t, 14, tpl.CharCount())
}

func TestParseCatalogRejectsBadEntries(t *testing.T) {
	t.Parallel()

	_, err := ParseCatalog([]byte(`
catalog:
  templates:
    - { id: a, persona_id: p, stage: opener, message: x }
    - { id: a, persona_id: p, stage: nudge, message: y }
`))
	assert.ErrorContains(t, err, "duplicate")

	_, err = ParseCatalog([]byte(`
catalog:
  templates:
    - { id: a, persona_id: p, stage: pitch, message: x }
`))
	assert.ErrorContains(t, err, "unknown stage")

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBlueprintFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.BlueprintCold, BlueprintFor(model.LeadStageNew))
	assert.Equal(t, model.BlueprintCold, BlueprintFor(model.LeadStageContacted))
	assert.Equal(t, model.BlueprintWarm, BlueprintFor(model.LeadStageEngaged))
	assert.Equal(t, model.BlueprintWarm, BlueprintFor(model.LeadStageQualified))
	assert.Equal(t, model.BlueprintRetention, BlueprintFor(model.LeadStageConverted))

	spec, ok := Blueprint(model.BlueprintWarm)
	require.True(t, ok)
	assert.Equal(t, []int{7, 10, 14, 21}, spec.LoopDays)
	assert.Equal(t, model.BlueprintRetention, spec.EscalateTo)
}
