package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"add quota overrides table": "add_quota_overrides_table",
		"Add-Plan-Features":         "add_plan_features",
		"ADD_SUBSCRIPTIONS":         "add_subscriptions",
		"add__usage__counters":      "add_usage_counters",
		"Seed Plans 123":            "seed_plans_123",
		"   spaces   ":              "spaces",
		"special!@#$chars":          "specialchars",
		"trailing_":                 "trailing",
		"_leading":                  "leading",
		"":                          "",
	}

	for input, want := range cases {
		assert.Equal(t, want, sanitizeName(input), "input %q", input)
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	mf, err := CreateMigration(dir, "Add Quota Overrides", "per-account quota override table")
	require.NoError(t, err)

	assert.Len(t, mf.Version, 14, "version is a YYYYMMDDHHMMSS timestamp")
	assert.True(t, strings.HasSuffix(mf.UpPath, "_add_quota_overrides.up.sql"))
	assert.True(t, strings.HasSuffix(mf.DownPath, "_add_quota_overrides.down.sql"))

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "Add Quota Overrides")
	assert.Contains(t, string(up), "per-account quota override table")
	assert.Contains(t, string(up), "UP migration")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Rollback")
	assert.Contains(t, string(down), "DOWN migration")
}

func TestCreateMigrationMakesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "migrations", "nested")

	mf, err := CreateMigration(dir, "init schema", "")
	require.NoError(t, err)

	_, err = os.Stat(mf.UpPath)
	assert.NoError(t, err)
	_, err = os.Stat(mf.DownPath)
	assert.NoError(t, err)
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{
		"20240101000000_init.up.sql",
		"20240101000000_init.down.sql",
		"20240201000000_add_plans.up.sql",
		"20240201000000_add_plans.down.sql",
		"notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("-- sql"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0755))

	got, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"20240101000000_init", "20240201000000_add_plans"}, got)
}

func TestListMigrationsMissingDirectory(t *testing.T) {
	got, err := ListMigrations(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Empty(t, got)
}
