package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-arndt/arenacall/algorithm"
	"github.com/p-arndt/arenacall/internal/testutil"
	"github.com/p-arndt/arenacall/protocol"
)

func TestParseArgs(t *testing.T) {
	args, err := parseArgs([]string{"3", "-7", "0"})
	require.NoError(t, err)
	require.Len(t, args, 3)
	assert.Equal(t, 3, args[0].Value())
	assert.Equal(t, -7, args[1].Value())

	_, err = parseArgs([]string{"3", "x"})
	assert.ErrorContains(t, err, `argument 2: "x" is not an integer`)
}

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(nil, &stdout, &stderr)

	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "usage: arenacall")
	assert.Empty(t, stdout.String())
}

func TestRunWithoutSandbox(t *testing.T) {
	t.Setenv(protocol.EnvSandboxDir, "")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-source", "a.cpp", "-interface", "i.txt", "solve", "1"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), protocol.EnvSandboxDir)
}

func TestSubmissionPathFallback(t *testing.T) {
	t.Setenv("SUBMISSION_FILE_SOURCE", "/submissions/7/main.cpp")

	got, err := submissionPath("", "source")
	require.NoError(t, err)
	assert.Equal(t, "/submissions/7/main.cpp", got)

	got, err = submissionPath("explicit.cpp", "source")
	require.NoError(t, err)
	assert.Equal(t, "explicit.cpp", got)

	_, err = submissionPath("", "no_such_param_in_tests")
	assert.ErrorIs(t, err, algorithm.ErrNotConfigured)
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, algorithm.Result{
		Status:   "ok",
		Value:    10,
		HasValue: true,
		Usage:    algorithm.Usage{Time: 15, Memory: 2048},
	})
	assert.Equal(t, "status: ok\nreturn: 10\ntime: 15\nmemory: 2048 (2MiB)\n", buf.String())

	buf.Reset()
	printResult(&buf, algorithm.Result{Status: "ok", Usage: algorithm.Usage{Time: 1, Memory: 1}})
	assert.NotContains(t, buf.String(), "return:")
}

func TestHistoryRecorder(t *testing.T) {
	st := testutil.NewTestStore(t)
	rec := &historyRecorder{store: st, processDir: "/run/sandbox/proc42"}

	require.NoError(t, rec.Record(&algorithm.Invocation{
		Name:      "solve",
		Kind:      protocol.Function,
		Args:      []int{3, 7},
		Result:    algorithm.Result{Status: "ok", Value: 10, HasValue: true, Usage: algorithm.Usage{Time: 15, Memory: 2048}},
		StartedAt: time.Now(),
		Duration:  4 * time.Millisecond,
	}))

	got, err := st.ListInvocations(10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "function", got[0].Kind)
	assert.Equal(t, "/run/sandbox/proc42", got[0].ProcessDir)
	assert.Equal(t, []int{3, 7}, got[0].Args)
	require.NotNil(t, got[0].ReturnValue)
	assert.Equal(t, 10, *got[0].ReturnValue)
	assert.Equal(t, int64(4), got[0].DurationMs)
}

func TestListHistory(t *testing.T) {
	st := testutil.NewTestStore(t)
	require.NoError(t, st.CreateInvocation(testutil.TestInvocation("init")))
	failed := testutil.TestInvocation("solve", 3, 7)
	failed.Error = "calling function solve: protocol: reading status: stream closed by driver"
	require.NoError(t, st.CreateInvocation(failed))

	var buf bytes.Buffer
	require.NoError(t, listHistory(&buf, st, "", 10))
	out := buf.String()
	assert.Contains(t, out, "STARTED")
	assert.Contains(t, out, "init()")
	assert.Contains(t, out, "solve(3, 7)")
	assert.Contains(t, out, "error")
	assert.Contains(t, out, "256KiB")

	buf.Reset()
	require.NoError(t, listHistory(&buf, st, "init", 10))
	assert.NotContains(t, buf.String(), "solve")
}

func TestRunHistoryRequiresDB(t *testing.T) {
	t.Setenv("ARENACALL_DB_PATH", "")

	var stdout, stderr bytes.Buffer
	code := run([]string{"history"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "no history database")
}

func TestRunHistoryPrune(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	var stdout, stderr bytes.Buffer
	code := run([]string{"history", "-db", dbPath, "-prune", "24h"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "STARTED")
	assert.Contains(t, stderr.String(), "pruned history")
}
