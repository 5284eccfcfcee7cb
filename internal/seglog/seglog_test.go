package seglog

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	. "testing"

	"github.com/lindend/dabble/internal/kv"
	"github.com/lindend/dabble/internal/manifest"
	"github.com/lindend/dabble/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *T, dir string, maxSegmentSize int, reclaim kv.Reclaim) *Store {
	s, err := Open(dir, Options{MaxSegmentSize: maxSegmentSize, Reclaim: reclaim})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func get(t *T, s kv.Store, key string) string {
	v, err := s.Get(key)
	require.NoError(t, err, "key %s", key)
	return string(v)
}

func segmentFiles(t *T, dir string) []string {
	files, err := filepath.Glob(filepath.Join(dir, "segment_*"))
	require.NoError(t, err)
	return files
}

func TestRollover(t *T) {
	s := openStore(t, t.TempDir(), 2, kv.KeepSuperseded)

	require.NoError(t, s.Set("a", []byte("1")))
	require.NoError(t, s.Set("b", []byte("2")))
	assert.Len(t, s.segments, 1)

	require.NoError(t, s.Set("c", []byte("3")))
	assert.Len(t, s.segments, 2)

	for n := 4; n <= 9; n++ {
		require.NoError(t, s.Set(fmt.Sprintf("k%d", n), []byte("v")))
		assert.Len(t, s.segments, (n+1)/2)
	}
}

func TestRepeatedKeysCountTowardsSize(t *T) {
	s := openStore(t, t.TempDir(), 2, kv.KeepSuperseded)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Set("same", []byte(fmt.Sprint(i))))
	}
	assert.Len(t, s.segments, 3)
	assert.Equal(t, "4", get(t, s, "same"))
}

func TestMaintainScenario(t *T) {
	dir := t.TempDir()
	s := openStore(t, dir, 2, kv.KeepSuperseded)

	for _, r := range [][2]string{
		{"key1", "val1"},
		{"key2", "val2"},
		{"key1", "val1*"},
		{"key1", "val1**"},
		{"key2", "val2*"},
		{"key3", "val3"},
	} {
		require.NoError(t, s.Set(r[0], []byte(r[1])))
	}
	require.Len(t, s.segments, 3)

	require.NoError(t, s.Maintain())
	require.Len(t, s.segments, 2)

	first, second := s.segments[0], s.segments[1]
	assert.ElementsMatch(t, []string{"key1", "key2"}, first.Keys())
	assert.ElementsMatch(t, []string{"key3"}, second.Keys())

	assert.Equal(t, "val1**", get(t, s, "key1"))
	assert.Equal(t, "val2*", get(t, s, "key2"))
	assert.Equal(t, "val3", get(t, s, "key3"))

	// The manifest lists exactly the consolidated segments
	m, err := manifest.Open(filepath.Join(dir, manifest.FileName))
	require.NoError(t, err)
	assert.Equal(t, []string{first.Name(), second.Name()}, m.IDs())

	// Superseded files are kept by default
	assert.Len(t, segmentFiles(t, dir), 5)

	// The newest consolidated segment has room and receives the next write
	require.NoError(t, s.Set("key4", []byte("val4")))
	assert.Len(t, s.segments, 2)
	assert.Equal(t, 2, second.Len())
}

func TestMaintainPreservesValues(t *T) {
	dir := t.TempDir()
	s := openStore(t, dir, 4, kv.KeepSuperseded)
	rnd := rand.New(rand.NewSource(1))

	expected := map[string]string{}
	for i := 0; i < 300; i++ {
		key := fmt.Sprintf("key%03d", rnd.Intn(50))
		value := fmt.Sprintf("value%d", i)
		require.NoError(t, s.Set(key, []byte(value)))
		expected[key] = value
	}

	require.NoError(t, s.Maintain())

	for key, value := range expected {
		assert.Equal(t, value, get(t, s, key))
	}
	assert.Len(t, s.segments, (len(expected)+3)/4)
	for _, seg := range s.segments {
		assert.LessOrEqual(t, seg.NumKeys(), 4)
	}

	// Consolidating twice changes nothing visible
	require.NoError(t, s.Maintain())
	for key, value := range expected {
		assert.Equal(t, value, get(t, s, key))
	}
}

func TestMaintainReclaimsSuperseded(t *T) {
	dir := t.TempDir()
	s := openStore(t, dir, 2, kv.ReclaimSuperseded)
	for i := 0; i < 6; i++ {
		require.NoError(t, s.Set(fmt.Sprintf("k%d", i%3), []byte(fmt.Sprint(i))))
	}
	require.Len(t, segmentFiles(t, dir), 3)

	require.NoError(t, s.Maintain())

	files := segmentFiles(t, dir)
	require.Len(t, files, 2)
	for i, seg := range s.segments {
		assert.Equal(t, seg.Path(), files[i])
	}
}

func TestMaintainEmptyStore(t *T) {
	s := openStore(t, t.TempDir(), 2, kv.KeepSuperseded)
	require.NoError(t, s.Maintain())
	assert.Empty(t, s.segments)

	require.NoError(t, s.Set("a", []byte("1")))
	assert.Equal(t, "1", get(t, s, "a"))
}

func TestReopen(t *T) {
	dir := t.TempDir()
	s, err := Open(dir, Options{MaxSegmentSize: 2})
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		require.NoError(t, s.Set(fmt.Sprintf("k%d", i%4), []byte(fmt.Sprint(i))))
	}
	require.NoError(t, s.Close())

	reopened := openStore(t, dir, 2, kv.KeepSuperseded)
	assert.Len(t, reopened.segments, 4)
	assert.Equal(t, "4", get(t, reopened, "k0"))
	assert.Equal(t, "6", get(t, reopened, "k2"))
	assert.Equal(t, "3", get(t, reopened, "k3"))

	// The last segment had a single record, so it keeps receiving writes
	require.NoError(t, reopened.Set("k9", []byte("9")))
	assert.Len(t, reopened.segments, 4)
}

func TestReopenAfterMaintain(t *T) {
	dir := t.TempDir()
	s, err := Open(dir, Options{MaxSegmentSize: 3})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Set(fmt.Sprintf("k%d", i%5), []byte(fmt.Sprint(i))))
	}
	require.NoError(t, s.Maintain())
	require.NoError(t, s.Close())

	reopened := openStore(t, dir, 3, kv.KeepSuperseded)
	assert.Len(t, reopened.segments, 2)
	for i := 5; i < 10; i++ {
		assert.Equal(t, fmt.Sprint(i), get(t, reopened, fmt.Sprintf("k%d", i%5)))
	}
}

func TestGetMissing(t *T) {
	s := openStore(t, t.TempDir(), 2, kv.KeepSuperseded)
	_, err := s.Get("missing")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, s.Set("a", []byte("1")))
	_, err = s.Get("missing")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestSetRejectsDelimiters(t *T) {
	dir := t.TempDir()
	s := openStore(t, dir, 2, kv.KeepSuperseded)
	assert.ErrorIs(t, s.Set("a:b", []byte("1")), record.ErrInvalidRecord)
	assert.ErrorIs(t, s.Set("a", []byte("1\n")), record.ErrInvalidRecord)
	assert.Empty(t, segmentFiles(t, dir))
}

func TestOpenFailsOnCorruptSegment(t *T) {
	dir := t.TempDir()
	s, err := Open(dir, Options{MaxSegmentSize: 2})
	require.NoError(t, err)
	require.NoError(t, s.Set("a", []byte("1")))
	path := s.active().Path()
	require.NoError(t, s.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("garbage\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Open(dir, Options{MaxSegmentSize: 2})
	assert.ErrorIs(t, err, record.ErrFormat)
}

func TestOpenFailsOnMissingSegment(t *T) {
	dir := t.TempDir()
	s := openStore(t, dir, 2, kv.KeepSuperseded)
	require.NoError(t, s.Set("a", []byte("1")))
	path := s.active().Path()
	require.NoError(t, s.Close())

	require.NoError(t, os.Remove(path))

	_, err := Open(dir, Options{MaxSegmentSize: 2})
	assert.ErrorIs(t, err, os.ErrNotExist)

	// The missing segment must not be recreated empty
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestStats(t *T) {
	s := openStore(t, t.TempDir(), 2, kv.KeepSuperseded)
	require.NoError(t, s.Set("a", []byte("1")))
	require.NoError(t, s.Set("a", []byte("2")))
	require.NoError(t, s.Set("b", []byte("3")))

	stats := s.Stats()
	assert.Equal(t, EngineName, stats.Engine)
	require.Len(t, stats.Structures, 2)
	assert.Equal(t, 2, stats.Structures[0].Records)
	assert.Equal(t, 1, stats.Structures[0].Keys)
	assert.False(t, stats.Structures[0].Mutable)
	assert.True(t, stats.Structures[1].Mutable)
}

func TestOpenRejectsInvalidOptions(t *T) {
	_, err := Open(t.TempDir(), Options{})
	assert.Error(t, err)
}
