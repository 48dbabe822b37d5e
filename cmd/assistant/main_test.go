package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setup 隔离 HOME 与工作目录，写入最小配置
func setup(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{"ASSISTANT_CONFIG_PATH", "ASSISTANT_HOME", "ASSISTANT_MODE", "ASSISTANT_LOG_LEVEL", "ASSISTANT_LANG"} {
		t.Setenv(k, "")
	}
	work := t.TempDir()
	t.Chdir(work)

	cfg := `
storage:
  base_dir: ` + filepath.Join(work, "data") + `
schedule:
  status_cron: "off"
logging:
  level: error
router:
  locale: en
voice:
  whisper_executable: /nonexistent/whisper-cli
`
	path := filepath.Join(work, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "ask", "status", "init", "sessions"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestAskStatus(t *testing.T) {
	cfg := setup(t)
	out, err := execute(t, "", "--config", cfg, "ask", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Assistant status")
	assert.Contains(t, out, "LLM mode: online")
}

func TestAskFromStdin(t *testing.T) {
	cfg := setup(t)
	out, err := execute(t, "  status\n", "--config", cfg, "ask")
	require.NoError(t, err)
	assert.Contains(t, out, "Assistant status")

	_, err = execute(t, "   ", "--config", cfg, "ask")
	require.Error(t, err)
}

func TestStatusCommand(t *testing.T) {
	cfg := setup(t)
	out, err := execute(t, "", "--config", cfg, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "remote backend: unknown")
}

func TestSessionsListAndExport(t *testing.T) {
	cfg := setup(t)

	out, err := execute(t, "", "--config", cfg, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no sessions")

	_, err = execute(t, "", "--config", cfg, "ask", "-s", "demo", "status")
	require.NoError(t, err)

	out, err = execute(t, "", "--config", cfg, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "SESSION")
	assert.Contains(t, out, "demo")

	out, err = execute(t, "", "--config", cfg, "sessions", "export", "demo")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"status"`)

	file := filepath.Join(t.TempDir(), "demo.jsonl")
	_, err = execute(t, "", "--config", cfg, "sessions", "export", "demo", "-o", file)
	require.NoError(t, err)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(out), strings.TrimSpace(string(data)))

	_, err = execute(t, "", "--config", cfg, "sessions", "export", "missing")
	require.Error(t, err)
}

func TestInitCommand(t *testing.T) {
	setup(t)
	out, err := execute(t, "", "init")
	require.NoError(t, err)
	path := strings.TrimSpace(out)
	assert.True(t, strings.HasSuffix(path, filepath.Join(".assistant", "config.json")), path)
	assert.FileExists(t, path)
}

func TestRunFlagsAreExclusive(t *testing.T) {
	cfg := setup(t)
	_, err := execute(t, "", "--config", cfg, "run", "--tui", "--headless")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestRunHeadlessWithoutSources(t *testing.T) {
	cfg := setup(t)
	_, err := execute(t, "", "--config", cfg, "run", "--headless")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input sources")
}
