package statestore

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcgill52/winprep/taskrunner"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int { return &v }

func TestNewDiskStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")

	store, err := NewDiskStore(dir, testLogger())
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.DirExists(t, dir)
}

func TestNewDiskStoreRejectsEmptyDir(t *testing.T) {
	_, err := NewDiskStore("", testLogger())
	assert.Error(t, err)
}

func TestDiskStorePutGet(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	rec := Record{
		Status:       "failed",
		Timestamp:    time.Now().Format(time.RFC3339),
		ExitCode:     intPtr(1603),
		ErrorMessage: "exit code 1603: fatal error during installation",
		Version:      "1.2.0",
	}
	require.NoError(t, store.Put("install-apps", rec))

	got, ok, err := store.Get("install-apps")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "install-apps", got.TaskName)
	assert.Equal(t, "failed", got.Status)
	require.NotNil(t, got.ExitCode)
	assert.Equal(t, 1603, *got.ExitCode)
	assert.Equal(t, "1.2.0", got.Version)
}

func TestDiskStoreGetMissing(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	_, ok, err := store.Get("never-ran")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiskStorePutOverwrites(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, testLogger())
	require.NoError(t, err)

	require.NoError(t, store.Put("os-update", Record{Status: "failed"}))
	require.NoError(t, store.Put("os-update", Record{Status: "success", ExitCode: intPtr(0)}))

	got, ok, err := store.Get("os-update")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "success", got.Status)

	// One record per task, no history.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDiskStoreAll(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	require.NoError(t, store.Put("a", Record{Status: "success"}))
	require.NoError(t, store.Put("b", Record{Status: "skipped", ErrorMessage: "network unavailable"}))

	all, err := store.All()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "success", all["a"].Status)
	assert.Equal(t, "skipped", all["b"].Status)
}

func TestDiskStoreAllToleratesGarbage(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, testLogger())
	require.NoError(t, err)

	require.NoError(t, store.Put("good", Record{Status: "success"}))

	// A torn write from an interrupted run and a partial record.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "torn.json"), []byte("{\"status\": \"succ"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partial.json"), []byte(`{"status": "failed"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a record"), 0644))

	all, err := store.All()
	require.NoError(t, err)
	require.Len(t, all, 2)

	// Missing fields resolve to zero values; the key falls back to the
	// file name.
	partial, ok := all["partial"]
	require.True(t, ok)
	assert.Equal(t, "failed", partial.Status)
	assert.Nil(t, partial.ExitCode)
	assert.Empty(t, partial.Version)
}

func TestDiskStoreEncodesNames(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, testLogger())
	require.NoError(t, err)

	require.NoError(t, store.Put("set wallpaper/theme", Record{Status: "success"}))

	got, ok, err := store.Get("set wallpaper/theme")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "set wallpaper/theme", got.TaskName)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), " ")
	assert.NotContains(t, entries[0].Name(), "/")
}

func TestDiskStoreDistinctNamesNeverShareAFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, testLogger())
	require.NoError(t, err)

	// "install app" and "install-app" must stay separate records even
	// though a lossy file-name mapping would merge them.
	require.NoError(t, store.Put("install app", Record{Status: "success"}))
	require.NoError(t, store.Put("install-app", Record{Status: "failed"}))

	got, ok, err := store.Get("install app")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "success", got.Status)

	all, err := store.All()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "success", all["install app"].Status)
	assert.Equal(t, "failed", all["install-app"].Status)
}

func TestFromResult(t *testing.T) {
	res := taskrunner.Result{
		TaskName:     "install-agent",
		Status:       taskrunner.Success,
		ExitCode:     intPtr(3010),
		Timestamp:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Duration:     90 * time.Second,
		ErrorMessage: "",
	}

	rec := FromResult(res, "1.2.0")
	assert.Equal(t, "install-agent", rec.TaskName)
	assert.Equal(t, "success", rec.Status)
	assert.Equal(t, "2024-05-01T12:00:00Z", rec.Timestamp)
	require.NotNil(t, rec.ExitCode)
	assert.Equal(t, 3010, *rec.ExitCode)
	assert.Equal(t, 90.0, rec.DurationSeconds)
	assert.Equal(t, "1.2.0", rec.Version)
}
