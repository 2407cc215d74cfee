package roles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_Roles(t *testing.T) {
	r := NewStatic(Directory{
		"acme":   {"manager-1": {"manager"}, "hr-1": {"hr", "manager"}},
		"globex": {"manager-1": {"finance"}},
	})

	got, err := r.Roles(t.Context(), "acme", "hr-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"hr", "manager"}, got)

	got, err = r.Roles(t.Context(), "globex", "manager-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"finance"}, got)

	got, err = r.Roles(t.Context(), "acme", "stranger")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStatic_GrantIsIdempotent(t *testing.T) {
	r := NewStatic(nil)
	r.Grant("acme", "u-1", "manager")
	r.Grant("acme", "u-1", "manager", "hr")

	got, _ := r.Roles(t.Context(), "acme", "u-1")
	assert.Equal(t, []string{"manager", "hr"}, got)
}

func TestStatic_RolesAreCopied(t *testing.T) {
	r := NewStatic(Directory{"acme": {"u-1": {"manager"}}})

	got, _ := r.Roles(t.Context(), "acme", "u-1")
	got[0] = "admin"

	again, _ := r.Roles(t.Context(), "acme", "u-1")
	assert.Equal(t, []string{"manager"}, again)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"acme": {"manager-1": ["manager"]}}`), 0o600))

	r, err := LoadFile(path)
	require.NoError(t, err)

	got, _ := r.Roles(t.Context(), "acme", "manager-1")
	assert.Equal(t, []string{"manager"}, got)

	empty, err := LoadFile("")
	require.NoError(t, err)

	got, _ = empty.Roles(t.Context(), "acme", "manager-1")
	assert.Empty(t, got)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[1,2]`), 0o600))
	_, err = LoadFile(bad)
	assert.Error(t, err)
}
