package diskcache

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/diskcache/internal/fs"
	"github.com/hupe1980/diskcache/journal"
)

func journalHeader(appVersion int) string {
	return fmt.Sprintf("%s\n%s\n%d\n\n", journal.Magic, journal.Version, appVersion)
}

func openCache(t *testing.T, dir string, maxSize int64, optFns ...Option) *Cache {
	t.Helper()
	c, err := Open(dir, 1, maxSize, optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func put(t *testing.T, c *Cache, key string, value []byte) {
	t.Helper()
	ed, err := c.Edit(key)
	require.NoError(t, err)
	require.NotNil(t, ed, "key %q is already being written", key)

	w, err := ed.Create()
	require.NoError(t, err)
	_, err = w.Write(value)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, ed.Commit())
}

func get(t *testing.T, c *Cache, key string) ([]byte, bool) {
	t.Helper()
	path, ok, err := c.Get(key)
	require.NoError(t, err)
	if !ok {
		return nil, false
	}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data, true
}

func readJournalFile(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, journal.FileName))
	require.NoError(t, err)
	return string(data)
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func assertNotExist(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "%s should not exist", path)
}

func TestOpen_InvalidArguments(t *testing.T) {
	_, err := Open(t.TempDir(), 1, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Open(t.TempDir(), 1, -5)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Open("", 1, 10)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestOpen_CreatesDirectoryAndJournal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	c := openCache(t, dir, 100)

	assert.Equal(t, dir, c.Dir())
	assert.Equal(t, int64(100), c.MaxSize())
	assert.Equal(t, int64(0), c.Size())
	assert.Equal(t, journalHeader(1), readJournalFile(t, dir))
}

func TestCache_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := openCache(t, dir, 1<<20)

	values := map[string][]byte{
		"a":     []byte("alpha"),
		"b-2":   bytes.Repeat([]byte{0xff}, 1000),
		"c_3":   {},
		"delta": []byte("d"),
	}
	for k, v := range values {
		put(t, c, k, v)
	}

	for k, v := range values {
		got, ok := get(t, c, k)
		require.True(t, ok, k)
		assert.Equal(t, v, got, k)
	}
	assert.Equal(t, int64(1006), c.Size())
	assert.Equal(t, 4, c.Len())

	keysBefore := c.Keys()
	sizeBefore := c.Size()
	require.NoError(t, c.Close())

	// Replaying the journal reproduces the same readable keys, order and size.
	c2 := openCache(t, dir, 1<<20)
	assert.Equal(t, keysBefore, c2.Keys())
	assert.Equal(t, sizeBefore, c2.Size())
	for k, v := range values {
		got, ok := get(t, c2, k)
		require.True(t, ok, k)
		assert.Equal(t, v, got, k)
	}
}

func TestCache_Overwrite(t *testing.T) {
	c := openCache(t, t.TempDir(), 1000)

	put(t, c, "k", []byte("0123456789"))
	put(t, c, "k", []byte("abc"))

	got, ok := get(t, c, "k")
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
	assert.Equal(t, int64(3), c.Size())
}

func TestCache_AtMostOneWriter(t *testing.T) {
	c := openCache(t, t.TempDir(), 1000)

	ed, err := c.Edit("k")
	require.NoError(t, err)
	require.NotNil(t, ed)
	assert.Equal(t, "k", ed.Key())

	second, err := c.Edit("k")
	require.NoError(t, err)
	assert.Nil(t, second)

	// Other keys are unaffected.
	other, err := c.Edit("other")
	require.NoError(t, err)
	require.NotNil(t, other)
	require.NoError(t, other.Abort())

	require.NoError(t, ed.Abort())

	third, err := c.Edit("k")
	require.NoError(t, err)
	require.NotNil(t, third)
	require.NoError(t, third.Abort())
}

func TestCache_InvalidKey(t *testing.T) {
	dir := t.TempDir()
	c := openCache(t, dir, 1000)

	for _, key := range []string{"", "UPPER", "has space", "../escape", "journal", strings.Repeat("x", 65)} {
		_, err := c.Edit(key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)

		_, _, err = c.Get(key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)

		_, err = c.Remove(key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}

	require.NoError(t, c.Flush())
	assert.Equal(t, journalHeader(1), readJournalFile(t, dir))
}

func TestCache_AbortNewKeyLeavesNoTrace(t *testing.T) {
	dir := t.TempDir()
	c := openCache(t, dir, 1000)

	ed, err := c.Edit("k")
	require.NoError(t, err)
	w, err := ed.Create()
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, ed.Abort())

	_, ok := get(t, c, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.Size())
	assertNotExist(t, filepath.Join(dir, "k"))
	assertNotExist(t, filepath.Join(dir, "k.tmp"))

	require.NoError(t, c.Close())
	assert.Equal(t, journalHeader(1)+"DIRTY k\nREMOVE k\n", readJournalFile(t, dir))
}

func TestCache_AbortKeepsPreviousValue(t *testing.T) {
	dir := t.TempDir()
	c := openCache(t, dir, 1000)

	put(t, c, "k", []byte("old"))

	ed, err := c.Edit("k")
	require.NoError(t, err)
	w, err := ed.Create()
	require.NoError(t, err)
	_, err = w.Write([]byte("replacement"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, ed.Abort())

	got, ok := get(t, c, "k")
	require.True(t, ok)
	assert.Equal(t, "old", string(got))
	assert.Equal(t, int64(3), c.Size())
	assertNotExist(t, filepath.Join(dir, "k.tmp"))

	require.NoError(t, c.Close())
	assert.Equal(t, journalHeader(1)+"DIRTY k\nCLEAN k 3\nDIRTY k\nCLEAN k 3\nREAD k\n", readJournalFile(t, dir))
}

func TestCache_CommitWithoutValueAborts(t *testing.T) {
	c := openCache(t, t.TempDir(), 1000)

	ed, err := c.Edit("k")
	require.NoError(t, err)
	require.NoError(t, ed.Commit())

	_, ok := get(t, c, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_EditorFinishesOnce(t *testing.T) {
	c := openCache(t, t.TempDir(), 1000)

	ed, err := c.Edit("k")
	require.NoError(t, err)
	w, err := ed.Create()
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, ed.Commit())

	assert.ErrorIs(t, ed.Commit(), ErrEditorDone)
	assert.ErrorIs(t, ed.Abort(), ErrEditorDone)
	_, err = ed.Create()
	assert.ErrorIs(t, err, ErrEditorDone)

	// Safe to defer after a successful commit.
	ed.AbortUnlessCommitted()

	_, ok := get(t, c, "k")
	assert.True(t, ok)
}

func TestCache_Remove(t *testing.T) {
	dir := t.TempDir()
	c := openCache(t, dir, 1000)

	put(t, c, "k", []byte("value"))

	removed, err := c.Remove("k")
	require.NoError(t, err)
	assert.True(t, removed)
	assertNotExist(t, filepath.Join(dir, "k"))
	assert.Equal(t, int64(0), c.Size())

	removed, err = c.Remove("k")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = c.Remove("never")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestCache_RemoveWhileEditing(t *testing.T) {
	c := openCache(t, t.TempDir(), 1000)

	put(t, c, "k", []byte("value"))
	ed, err := c.Edit("k")
	require.NoError(t, err)

	removed, err := c.Remove("k")
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, ed.Abort())
	_, ok := get(t, c, "k")
	assert.True(t, ok)
}

func TestCache_EvictionScenario(t *testing.T) {
	dir := t.TempDir()
	c := openCache(t, dir, 1000)

	payload := bytes.Repeat([]byte("x"), 100)
	for _, k := range []string{"0", "1", "2", "3", "4"} {
		put(t, c, k, payload)
	}
	assert.Equal(t, int64(500), c.Size())

	for _, k := range []string{"2", "4", "1"} {
		_, ok := get(t, c, k)
		require.True(t, ok, k)
	}
	assert.Equal(t, []string{"0", "3", "2", "4", "1"}, c.Keys())

	put(t, c, "big", bytes.Repeat([]byte("y"), 800))

	require.Eventually(t, func() bool { return c.Size() <= 1000 }, 5*time.Second, 5*time.Millisecond)

	for _, k := range []string{"0", "3", "2"} {
		_, ok := get(t, c, k)
		assert.False(t, ok, "%s should have been evicted", k)
		assertNotExist(t, filepath.Join(dir, k))
	}
	for k, n := range map[string]int{"4": 100, "1": 100, "big": 800} {
		got, ok := get(t, c, k)
		require.True(t, ok, k)
		assert.Len(t, got, n, k)
	}
	assert.Equal(t, int64(1000), c.Size())
	assert.Equal(t, int64(3), c.Stats().Evictions)
}

func TestCache_SizeBoundEventually(t *testing.T) {
	c := openCache(t, t.TempDir(), 500)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("k%d", rng.Intn(20))
		put(t, c, key, bytes.Repeat([]byte("z"), rng.Intn(120)))
		if rng.Intn(4) == 0 {
			_, err := c.Remove(fmt.Sprintf("k%d", rng.Intn(20)))
			require.NoError(t, err)
		}
	}

	require.Eventually(t, func() bool {
		return c.compactor.idle() && c.Size() <= 500
	}, 5*time.Second, 5*time.Millisecond)
}

func TestCache_WritersAreNotEvicted(t *testing.T) {
	c := openCache(t, t.TempDir(), 100)

	put(t, c, "a", bytes.Repeat([]byte("a"), 80))
	ed, err := c.Edit("a")
	require.NoError(t, err)

	put(t, c, "b", bytes.Repeat([]byte("b"), 80))

	// "a" is older but has a live writer, so "b" goes.
	require.NoError(t, c.Flush())
	assert.Equal(t, []string{"a"}, c.Keys())
	assert.Equal(t, int64(80), c.Size())

	require.NoError(t, ed.Abort())
}

func TestCache_SetMaxSize(t *testing.T) {
	c := openCache(t, t.TempDir(), 1000)

	for i := 0; i < 5; i++ {
		put(t, c, fmt.Sprintf("k%d", i), bytes.Repeat([]byte("v"), 100))
	}

	assert.ErrorIs(t, c.SetMaxSize(0), ErrInvalidArgument)
	require.NoError(t, c.SetMaxSize(250))
	require.Eventually(t, func() bool { return c.Size() <= 250 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"k3", "k4"}, c.Keys())
}

func TestCache_VersionMismatch(t *testing.T) {
	dir := t.TempDir()

	c, err := Open(dir, 1, 1000)
	require.NoError(t, err)
	put(t, c, "k", []byte("value"))
	require.NoError(t, c.Close())

	mc := &BasicMetricsCollector{}
	c2, err := Open(dir, 2, 1000, WithMetricsCollector(mc))
	require.NoError(t, err)
	defer func() { _ = c2.Close() }()

	_, ok := get(t, c2, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c2.Len())
	assertNotExist(t, filepath.Join(dir, "k"))
	assert.Equal(t, journalHeader(2), readJournalFile(t, dir))
	assert.Equal(t, int64(1), mc.GetStats().ResetCount)
}

func TestCache_CorruptHeaderResets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, journal.FileName), "not a journal\n")
	writeFile(t, filepath.Join(dir, "k"), "orphan")

	c := openCache(t, dir, 1000)
	assert.Equal(t, 0, c.Len())
	assertNotExist(t, filepath.Join(dir, "k"))
	assert.Equal(t, journalHeader(1), readJournalFile(t, dir))
}

func TestCache_InterruptedWritesDroppedOnOpen(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, journal.FileName), journalHeader(1)+
		"DIRTY a\nCLEAN a 3\n"+
		"DIRTY a\n"+
		"DIRTY b\n"+
		"DIRTY c\nCLEAN c 2\n")
	writeFile(t, filepath.Join(dir, "a"), "abc")
	writeFile(t, filepath.Join(dir, "a.tmp"), "new")
	writeFile(t, filepath.Join(dir, "b.tmp"), "partial")
	writeFile(t, filepath.Join(dir, "c"), "cc")
	writeFile(t, filepath.Join(dir, journal.TempFileName), "stale")

	c := openCache(t, dir, 1000)

	assert.Equal(t, []string{"c"}, c.Keys())
	assert.Equal(t, int64(2), c.Size())
	for _, name := range []string{"a", "a.tmp", "b.tmp", journal.TempFileName} {
		assertNotExist(t, filepath.Join(dir, name))
	}
}

func TestCache_MalformedLinesSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, journal.FileName), journalHeader(1)+
		"CLEAN a 3\n"+
		"GARBAGE\n"+
		"CLEAN b notanumber\n"+
		"CLEAN b 2\n")
	writeFile(t, filepath.Join(dir, "a"), "abc")
	writeFile(t, filepath.Join(dir, "b"), "bb")

	c := openCache(t, dir, 1000)

	assert.Equal(t, []string{"a", "b"}, c.Keys())
	assert.Equal(t, int64(5), c.Size())
	assert.Equal(t, 2, c.Stats().RedundantOps)
}

func TestCache_TornTailRebuildsJournal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, journal.FileName), journalHeader(1)+
		"DIRTY a\nCLEAN a 3\nREAD a\nCLEAN b 5")
	writeFile(t, filepath.Join(dir, "a"), "abc")

	c := openCache(t, dir, 1000)

	assert.Equal(t, []string{"a"}, c.Keys())
	assert.Equal(t, 0, c.Stats().RedundantOps)
	assert.Equal(t, journalHeader(1)+"CLEAN a 3\n", readJournalFile(t, dir))
}

func TestCache_RestoresJournalBackup(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, journal.BackupFileName), journalHeader(1)+"DIRTY a\nCLEAN a 3\n")
	writeFile(t, filepath.Join(dir, "a"), "abc")

	c := openCache(t, dir, 1000)

	got, ok := get(t, c, "a")
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
	assertNotExist(t, filepath.Join(dir, journal.BackupFileName))
}

func TestCache_DiscardsStaleBackup(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, journal.FileName), journalHeader(1)+"CLEAN a 3\n")
	writeFile(t, filepath.Join(dir, journal.BackupFileName), journalHeader(1)+"CLEAN stale 9\n")
	writeFile(t, filepath.Join(dir, "a"), "abc")

	c := openCache(t, dir, 1000)

	assert.Equal(t, []string{"a"}, c.Keys())
	assertNotExist(t, filepath.Join(dir, journal.BackupFileName))
}

func TestCache_MissingValueSelfHeals(t *testing.T) {
	dir := t.TempDir()
	c := openCache(t, dir, 1000)

	put(t, c, "k", []byte("value"))
	require.NoError(t, os.Remove(filepath.Join(dir, "k")))

	path, ok, err := c.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, path)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.Size())

	require.NoError(t, c.Close())
	assert.True(t, strings.HasSuffix(readJournalFile(t, dir), "REMOVE k\n"))
}

func TestCache_MissingValueWhileEditing(t *testing.T) {
	dir := t.TempDir()
	c := openCache(t, dir, 1000)

	put(t, c, "k", []byte("old"))
	ed, err := c.Edit("k")
	require.NoError(t, err)
	require.NotNil(t, ed)
	w, err := ed.Create()
	require.NoError(t, err)
	_, err = w.Write([]byte("new value"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, os.Remove(filepath.Join(dir, "k")))
	_, ok := get(t, c, "k")
	assert.False(t, ok)
	assert.Equal(t, int64(0), c.Size())
	assert.Equal(t, 1, c.Len(), "entry stays for its writer")

	// The writer's DIRTY record must still be open, so that a crash now
	// leaves recovery responsible for the dirty file.
	require.NoError(t, c.Flush())
	snapshot := readJournalFile(t, dir)
	assert.True(t, strings.HasSuffix(snapshot, "CLEAN k 3\nDIRTY k\n"), snapshot)

	crashed := t.TempDir()
	writeFile(t, filepath.Join(crashed, journal.FileName), snapshot)
	writeFile(t, filepath.Join(crashed, "k.tmp"), "new value")
	recovered := openCache(t, crashed, 1000)
	assert.Zero(t, recovered.Len())
	assertNotExist(t, filepath.Join(crashed, "k.tmp"))

	// Without a crash the writer resolves the entry.
	require.NoError(t, ed.Abort())
	assert.Zero(t, c.Len())
	assertNotExist(t, filepath.Join(dir, "k.tmp"))
	require.NoError(t, c.Close())
	assert.True(t, strings.HasSuffix(readJournalFile(t, dir), "DIRTY k\nREMOVE k\n"))
}

func TestCache_OpenValue(t *testing.T) {
	dir := t.TempDir()
	ffs := fs.NewFaultyFS(nil)
	c := openCache(t, dir, 1000, WithFileSystem(ffs))

	put(t, c, "k", []byte("value"))

	rc, ok, err := c.OpenValue("k")
	require.NoError(t, err)
	require.True(t, ok)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "value", string(data))

	_, ok, err = c.OpenValue("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	ffs.AddRule(filepath.Join(dir, "k"), fs.Fault{FailAfterBytes: -1, FailOnOpen: true})
	_, ok, err = c.OpenValue("k")
	assert.ErrorIs(t, err, fs.ErrInjected)
	assert.False(t, ok)
	ffs.ClearRules()

	require.NoError(t, c.Close())
	_, _, err = c.OpenValue("k")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCache_CommitRenameFailureLeavesEditorLive(t *testing.T) {
	dir := t.TempDir()
	ffs := fs.NewFaultyFS(nil)
	c := openCache(t, dir, 1000, WithFileSystem(ffs))

	ffs.AddRule("k.tmp", fs.Fault{FailAfterBytes: -1, FailOnRename: true})

	ed, err := c.Edit("k")
	require.NoError(t, err)
	w, err := ed.Create()
	require.NoError(t, err)
	_, err = w.Write([]byte("value"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.ErrorIs(t, ed.Commit(), fs.ErrInjected)

	// Still owned by the first editor.
	again, err := c.Edit("k")
	require.NoError(t, err)
	assert.Nil(t, again)
	_, ok := get(t, c, "k")
	assert.False(t, ok)

	ffs.ClearRules()
	require.NoError(t, ed.Commit())
	got, ok := get(t, c, "k")
	require.True(t, ok)
	assert.Equal(t, "value", string(got))
}

func TestCache_EditFailsWhenJournalUnwritable(t *testing.T) {
	dir := t.TempDir()
	ffs := fs.NewFaultyFS(nil)

	c, err := Open(dir, 1, 1000, WithFileSystem(ffs))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	// Every append to the reopened journal fails.
	ffs.AddRule(string(filepath.Separator)+journal.FileName, fs.Fault{FailAfterBytes: 0})
	c = openCache(t, dir, 1000, WithFileSystem(ffs))

	ed, err := c.Edit("k")
	assert.ErrorIs(t, err, fs.ErrInjected)
	assert.Nil(t, ed)

	// The failed edit left nothing behind.
	assert.Equal(t, 0, c.Stats().Editing)
	_, ok := c.entries.lookup("k")
	assert.False(t, ok)
}

func TestCache_JournalRebuild(t *testing.T) {
	dir := t.TempDir()
	mc := &BasicMetricsCollector{}
	c := openCache(t, dir, 1000, WithRebuildThreshold(10), WithMetricsCollector(mc))

	put(t, c, "a", []byte("a"))
	put(t, c, "b", []byte("bb"))
	for i := 0; i < 40; i++ {
		_, ok := get(t, c, "a")
		require.True(t, ok)
	}

	require.Eventually(t, func() bool {
		return c.compactor.idle() && c.Stats().RedundantOps < 10
	}, 5*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, mc.GetStats().RebuildCount, int64(1))

	require.NoError(t, c.Close())
	lines := strings.Split(strings.TrimSuffix(readJournalFile(t, dir), "\n"), "\n")
	assert.Less(t, len(lines), 4+2+10)

	c2 := openCache(t, dir, 1000)
	assert.ElementsMatch(t, []string{"a", "b"}, c2.Keys())
	assert.Equal(t, int64(3), c2.Size())
}

func TestCache_Compact(t *testing.T) {
	dir := t.TempDir()
	c := openCache(t, dir, 3)

	put(t, c, "a", []byte("aa"))
	put(t, c, "b", []byte("bb"))
	for i := 0; i < 5; i++ {
		_, ok := get(t, c, "b")
		require.True(t, ok)
	}

	require.NoError(t, c.Compact())
	assert.Equal(t, []string{"b"}, c.Keys())
	assert.Zero(t, c.Stats().RedundantOps)
	assert.Equal(t, journalHeader(1)+"CLEAN b 2\n", readJournalFile(t, dir))

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Compact(), ErrClosed)
}

func TestCache_Close(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, 1, 1000)
	require.NoError(t, err)

	put(t, c, "kept", []byte("v"))

	ed, err := c.Edit("pending")
	require.NoError(t, err)
	w, err := ed.Create()
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, c.Close())
	assert.True(t, c.IsClosed())
	require.NoError(t, c.Close())

	// The live editor was aborted by Close.
	assert.ErrorIs(t, ed.Commit(), ErrEditorDone)
	assertNotExist(t, filepath.Join(dir, "pending.tmp"))

	_, err = c.Edit("k")
	assert.ErrorIs(t, err, ErrClosed)
	_, _, err = c.Get("kept")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Remove("kept")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Flush(), ErrClosed)
	assert.ErrorIs(t, c.SetMaxSize(10), ErrClosed)

	c2 := openCache(t, dir, 1000)
	assert.Equal(t, []string{"kept"}, c2.Keys())
}

func TestCache_CloseTrimsToBudget(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, 1, 100)
	require.NoError(t, err)

	put(t, c, "a", bytes.Repeat([]byte("a"), 60))
	put(t, c, "b", bytes.Repeat([]byte("b"), 60))
	require.NoError(t, c.Close())

	c2 := openCache(t, dir, 100)
	assert.Equal(t, []string{"b"}, c2.Keys())
}

func TestCache_Delete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := Open(dir, 1, 1000)
	require.NoError(t, err)
	put(t, c, "k", []byte("v"))

	require.NoError(t, c.Delete())
	assertNotExist(t, dir)
}

func TestCache_Metrics(t *testing.T) {
	mc := &BasicMetricsCollector{}
	c := openCache(t, t.TempDir(), 1000, WithMetricsCollector(mc), WithLogger(NoopLogger()))

	put(t, c, "k", []byte("value"))
	_, ok := get(t, c, "k")
	require.True(t, ok)
	_, ok = get(t, c, "missing")
	require.False(t, ok)

	ed, err := c.Edit("aborted")
	require.NoError(t, err)
	require.NoError(t, ed.Abort())

	_, err = c.Remove("k")
	require.NoError(t, err)

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.CommitCount)
	assert.Equal(t, int64(5), stats.CommitBytes)
	assert.Equal(t, int64(1), stats.AbortCount)
	assert.Equal(t, int64(1), stats.RemoveCount)
	assert.Equal(t, int64(1), stats.RecoveryCount)

	cs := c.Stats()
	assert.Equal(t, int64(1), cs.Hits)
	assert.Equal(t, int64(1), cs.Misses)
}

func TestCache_ConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	c := openCache(t, dir, 1<<20)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				key := fmt.Sprintf("k%d", (g*7+i)%10)
				ed, err := c.Edit(key)
				if err != nil || ed == nil {
					continue
				}
				w, err := ed.Create()
				if err != nil {
					_ = ed.Abort()
					continue
				}
				_, _ = w.Write(bytes.Repeat([]byte{byte(g)}, g+1))
				_ = w.Close()
				if i%5 == 0 {
					_ = ed.Abort()
				} else {
					_ = ed.Commit()
				}
				_, _, _ = c.Get(key)
			}
		}()
	}
	wg.Wait()

	var total int64
	for _, k := range c.Keys() {
		info, err := os.Stat(filepath.Join(dir, k))
		require.NoError(t, err)
		total += info.Size()
	}
	assert.Equal(t, total, c.Size())
	assert.Equal(t, 0, c.Stats().Editing)
}
