package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choreboard/choreboard/internal/recurring"
)

func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CHOREBOARD_DB_DRIVER", "sqlite")
	t.Setenv("CHOREBOARD_DB_DSN", filepath.Join(dir, "choreboard.db"))
	t.Setenv("CHOREBOARD_BACKUP_DIR", filepath.Join(dir, "backups"))
	t.Setenv("CHOREBOARD_UPLOAD_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("CHOREBOARD_LOG_LEVEL", "error")
	t.Setenv("CHOREBOARD_ENV", "development")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "generate", "backup", "migrate", "vapid"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestVAPIDCommand(t *testing.T) {
	out, err := execute(t, "vapid")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "CHOREBOARD_VAPID_PUBLIC_KEY="))
	assert.True(t, strings.HasPrefix(lines[1], "CHOREBOARD_VAPID_PRIVATE_KEY="))
	assert.Greater(t, len(lines[0]), len("CHOREBOARD_VAPID_PUBLIC_KEY="))
}

func TestMigrateAndVersion(t *testing.T) {
	testEnv(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version")
	assert.NotContains(t, out, "schema version 0 ")

	out, err = execute(t, "migrate", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "(sqlite)")
}

func TestGenerateOnEmptyDatabase(t *testing.T) {
	testEnv(t)

	out, err := execute(t, "generate")
	require.NoError(t, err)

	var res recurring.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Empty(t, res.Generated)
	assert.Empty(t, res.Failed)
}

func TestBackupRunListRestore(t *testing.T) {
	dir := testEnv(t)

	out, err := execute(t, "backup", "run")
	require.NoError(t, err)
	assert.Contains(t, out, "backup 1 written")

	out, err = execute(t, "backup", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, ".db")

	restored := filepath.Join(dir, "restored.db")
	_, err = execute(t, "backup", "restore", "--id", "1", "--out", restored)
	require.NoError(t, err)

	data, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("SQLite format 3")))

	_, err = execute(t, "backup", "restore", "--id", "99")
	assert.Error(t, err)
}

func TestConfigFileMustExist(t *testing.T) {
	testEnv(t)

	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}
