package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const copyScript = `
name: copy-four
buffers:
  - {name: in, size: 64}
  - {name: out, size: 64}
filters:
  - {name: src, work: source, state_addr: 0x1000}
  - {name: cp, work: copy}
  - {name: sink, work: sink, state_addr: 0x2000}
memory:
  - {addr: 0x1000, words: [10]}
commands:
  - {name: load-src, op: filter_load, filter: src}
  - {name: load-cp, op: filter_load, filter: cp}
  - {name: load-sink, op: filter_load, filter: sink}
  - {name: a, op: attach_output, filter: src, buffer: in, after: [load-src]}
  - {name: b, op: attach_input, filter: cp, buffer: in, after: [load-cp]}
  - {name: c, op: attach_output, filter: cp, buffer: out, after: [load-cp]}
  - {name: d, op: attach_input, filter: sink, buffer: out, after: [load-sink]}
  - {name: run-src, op: filter_run, filter: src, iters: 4, loop_iters: 4, after: [a, b, c, d]}
  - {name: run-cp, op: filter_run, filter: cp, iters: 4, loop_iters: 2, after: [run-src]}
  - {name: run-sink, op: filter_run, filter: sink, iters: 4, loop_iters: 4, after: [run-cp]}
  - {name: unload-sink, op: filter_unload, filter: sink, after: [run-sink]}
dump:
  - {name: sink, addr: 0x2000, words: 3}
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		cfgFile, logLevel = "", ""
		runOutput, runWatch, runReset = "table", false, false
		initForce, routinesOutput = false, "table"
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "streamit dev")
}

func TestRoutines_JSON(t *testing.T) {
	out, err := execute(t, "routines", "--output", "json")
	require.NoError(t, err)

	var list []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Len(t, list, 5)
	assert.Equal(t, "add", list[0]["name"])
}

func TestInit_WritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamit.yaml")

	out, err := execute(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, err = execute(t, "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "init", "--config", path, "--force")
	assert.NoError(t, err)
}

func TestRun_JSONReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "copy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(copyScript), 0644))

	out, err := execute(t, "run", path, "--output", "json", "--config", filepath.Join(dir, "none.yaml"))
	require.NoError(t, err)

	var report struct {
		Script string `json:"script"`
		Stats  struct {
			Completed int `json:"completed"`
		} `json:"stats"`
		Dumps []struct {
			Words []uint32 `json:"words"`
		} `json:"dumps"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "copy-four", report.Script)
	assert.Equal(t, 11, report.Stats.Completed)
	require.Len(t, report.Dumps, 1)
	// 10 + 11 + 12 + 13
	assert.Equal(t, []uint32{46, 0, 4}, report.Dumps[0].Words)
}

func TestRun_FilesystemBackendPersists(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "copy.yaml")
	require.NoError(t, os.WriteFile(script, []byte(copyScript), 0644))

	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("shared:\n  backend: filesystem\n  filesystem:\n    path: "+
		filepath.ToSlash(filepath.Join(dir, "pages"))+"\n"), 0644))

	out, err := execute(t, "run", script, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "run-sink")
	assert.Contains(t, out, "copy-four: 11 commands")

	entries, err := os.ReadDir(filepath.Join(dir, "pages"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "pages written to disk")
}

func TestRun_InvalidScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: bad\ncommands: [{name: a, op: warp}]\n"), 0644))

	_, err := execute(t, "run", path)
	assert.ErrorContains(t, err, "oneof")
}

func TestConfigValidate_RequiresFile(t *testing.T) {
	_, err := execute(t, "config", "validate")
	assert.ErrorContains(t, err, "streamit init")
}

func TestConfigShow_Defaults(t *testing.T) {
	out, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "backend: memory")
	assert.Contains(t, out, "local_store_size: 256Ki")
}
