//go:build linux

package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-arndt/arenacall/internal/testutil"
	"github.com/p-arndt/arenacall/protocol"
)

func TestCallRecordsHistory(t *testing.T) {
	dir := testutil.SandboxDir(t, "proc42")
	d := testutil.NewDriver(
		testutil.CallStep("solve", protocol.Function, []int{3, 7}, "ok", 10),
		testutil.WaitStep(15, 2048),
		testutil.ExitStep(),
	)
	d.StartFIFO(dir, "proc42")

	cfg := testutil.TestConfig(dir)
	dbPath := filepath.Join(t.TempDir(), "history.db")
	opts := callOptions{
		Name:      "solve",
		Args:      protocol.Scalars(3, 7),
		Source:    "main.cpp",
		Interface: "interface.txt",
		DBPath:    dbPath,
	}

	var stdout bytes.Buffer
	require.NoError(t, call(cfg, opts, &stdout, newLogger(&bytes.Buffer{}, cfg.Level())))
	require.NoError(t, d.Wait())
	assert.Equal(t, "status: ok\nreturn: 10\ntime: 15\nmemory: 2048 (2MiB)\n", stdout.String())
	assert.Equal(t, "main.cpp", d.Source)

	var out, errOut bytes.Buffer
	code := run([]string{"history", "-db", dbPath}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), "solve(3, 7)")
	assert.Contains(t, out.String(), "2MiB")
}

func TestRunProcedureFromEnv(t *testing.T) {
	dir := testutil.SandboxDir(t, "proc1")
	d := testutil.NewDriver(
		testutil.CallStep("init", protocol.Procedure, []int{5}, "ok", 0),
		testutil.WaitStep(2, 64),
		testutil.ExitStep(),
	)
	d.StartFIFO(dir, "proc1")

	t.Setenv(protocol.EnvSandboxDir, dir)
	t.Setenv("SUBMISSION_FILE_SOURCE", "/sub/main.cpp")
	t.Setenv("SUBMISSION_FILE_INTERFACE", "/sub/interface.txt")
	t.Setenv("ARENACALL_DB_PATH", "")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-procedure", "init", "5"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	require.NoError(t, d.Wait())

	assert.Equal(t, "status: ok\ntime: 2\nmemory: 64 (64KiB)\n", stdout.String())
	assert.Equal(t, "/sub/main.cpp", d.Source)
	assert.Equal(t, "/sub/interface.txt", d.Interface)
}
