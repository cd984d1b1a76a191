package roster

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/awareness/internal/registry"
	"github.com/roach88/awareness/internal/world"
)

func TestLoadFile_YAML(t *testing.T) {
	r, err := LoadFile("testdata/roster.yaml")
	require.NoError(t, err)
	require.Len(t, r.Subscribers, 3)

	profiles := r.Profiles()
	byID := map[string]world.SubscriberProfile{}
	for _, p := range profiles {
		byID[p.ID] = p
	}

	gen := byID["gen-okafor"]
	assert.Equal(t, 80, gen.Clearance, "military archetype default")
	assert.Contains(t, gen.AccessTags, "military_intelligence")
	assert.Equal(t, []string{"strategy"}, gen.Specialties)

	minister := byID["minister-vale"]
	assert.Equal(t, 70, minister.Clearance, "explicit clearance wins")
	assert.Equal(t, []string{"government_internal", "budget_details"}, minister.AccessTags, "explicit tags win")

	assert.Equal(t, 40, byID["reporter-lin"].Clearance)
}

func TestLoadFile_CUE(t *testing.T) {
	r, err := LoadFile("testdata/roster.cue")
	require.NoError(t, err)
	require.Len(t, r.Subscribers, 1)
	require.NotNil(t, r.Subscribers[0].Clearance)
	assert.Equal(t, 55, *r.Subscribers[0].Clearance)
}

func TestParseYAML_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"clearance out of range", "subscribers:\n  - id: a\n    clearance_level: 150\n"},
		{"unknown archetype", "subscribers:\n  - id: a\n    archetype: wizard\n"},
		{"unknown key", "subscribers:\n  - id: a\n    clearance: 10\n"},
		{"missing id", "subscribers:\n  - name: nobody\n"},
		{"bad tag", "subscribers:\n  - id: a\n    specialty_tags: ['!!']\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML("inline", []byte(tt.doc))
			require.Error(t, err)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %T: %v", err, err)
			assert.NotEmpty(t, ve.Problems)
		})
	}
}

func TestParseYAML_DuplicateIDs(t *testing.T) {
	_, err := ParseYAML("inline", []byte("subscribers:\n  - id: a\n  - id: a\n"))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Problems[0], "duplicate id")
}

func TestParseYAML_Empty(t *testing.T) {
	r, err := ParseYAML("empty", nil)
	require.NoError(t, err)
	assert.Empty(t, r.Subscribers)
}

func TestRegisterAll(t *testing.T) {
	r, err := LoadFile("testdata/roster.yaml")
	require.NoError(t, err)

	reg := registry.New()
	n, err := RegisterAll(reg, r)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	p, ok := reg.Lookup("gen-okafor")
	require.True(t, ok)
	assert.Equal(t, world.MatchDirect, p.Capabilities.MatchFor(world.CategoryMilitary))
}
