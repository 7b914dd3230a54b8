package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("WORKLOG_DB_PATH", ":memory:")
	t.Setenv("WORKLOG_EXPORT_OUTPUT_DIR", filepath.Join(dir, "exports"))

	var out bytes.Buffer
	err := execute(context.Background(), args, &out)
	return out.String(), err
}

func TestGenerate_SavesDrafts(t *testing.T) {
	out, err := runCLI(t, "generate", "12",
		"--from", "2024-07-01", "--to", "2024-07-05",
		"--work-type", "3", "--hours", "7.5", "--driver", "5", "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "Generated 5 drafts, skipped 0 days")
	assert.Contains(t, out, "Saved 5, failed 0")
}

func TestGenerate_RejectsBadInput(t *testing.T) {
	_, err := runCLI(t, "generate", "abc", "--from", "2024-07-01", "--to", "2024-07-05")
	assert.Error(t, err)

	_, err = runCLI(t, "generate", "12", "--from", "2024-07-01", "--to", "2024-07-05", "--hours", "eight", "--work-type", "1", "--driver", "1")
	assert.Error(t, err)

	_, err = runCLI(t, "generate", "12", "--from", "2024-07-01", "--to", "2024-08-02", "--work-type", "1", "--driver", "1")
	assert.Error(t, err)
}

func TestVerify_UnknownBatchIsNotFound(t *testing.T) {
	out, err := runCLI(t, "verify", "12345")
	require.NoError(t, err)
	assert.Contains(t, out, "Batch 12345: NOT_FOUND")
}

func TestVerify_DecisionNeedsPendingTransaction(t *testing.T) {
	_, err := runCLI(t, "verify", "12345", "--reject", "wrong supplier")
	assert.Error(t, err)

	_, err = runCLI(t, "verify", "12345", "--accept", "--reject", "x")
	assert.Error(t, err)
}

func TestExport_WritesWorkbook(t *testing.T) {
	target := filepath.Join(t.TempDir(), "july.xlsx")
	out, err := runCLI(t, "export", "12", "--month", "7", "--year", "2024", "--out", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+target)

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}
