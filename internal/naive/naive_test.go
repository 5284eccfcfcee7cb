package naive

import (
	"os"
	"path/filepath"
	. "testing"

	"github.com/lindend/dabble/internal/kv"
	"github.com/lindend/dabble/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemory(t *T) {
	s := NewInMemory()
	defer s.Close()

	value := []byte("1")
	require.NoError(t, s.Set("a", value))
	value[0] = '2'

	v, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))

	// Callers own the returned slice
	v[0] = '9'
	v, err = s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))

	_, err = s.Get("b")
	assert.ErrorIs(t, err, kv.ErrNotFound)
	assert.Equal(t, 1, s.Stats().Structures[0].Keys)
}

func TestJSONFileRewritesWholeStore(t *T) {
	dir := t.TempDir()
	s, err := OpenJSONFile(dir)
	require.NoError(t, err)

	require.NoError(t, s.Set("a", []byte("1")))
	require.NoError(t, s.Set("b", []byte("2")))
	require.NoError(t, s.Set("a", []byte("3")))

	data, err := os.ReadFile(filepath.Join(dir, StoreFileName))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"Mw==","b":"Mg=="}`, string(data))
}

func TestJSONFileKeepsBinaryValues(t *T) {
	s, err := OpenJSONFile(t.TempDir())
	require.NoError(t, err)

	value := []byte{0xff, 0xfe, 'x', 0x00}
	require.NoError(t, s.Set("a", value))

	v, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, value, v)
}

func TestJSONFileCorrupt(t *T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, StoreFileName), []byte("{"), 0644))

	_, err := OpenJSONFile(dir)
	assert.ErrorIs(t, err, record.ErrFormat)
}

func TestAppendLogReturnsLastMatch(t *T) {
	dir := t.TempDir()
	s, err := OpenAppendLog(dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("a", []byte("1")))
	require.NoError(t, s.Set("b", []byte("2")))
	require.NoError(t, s.Set("a", []byte("3")))
	require.NoError(t, s.Set("c", []byte("")))

	v, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "3", string(v))

	v, err = s.Get("c")
	require.NoError(t, err)
	assert.Empty(t, v)

	_, err = s.Get("d")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	data, err := os.ReadFile(filepath.Join(dir, StoreFileName))
	require.NoError(t, err)
	assert.Equal(t, "a:1\nb:2\na:3\nc:\n", string(data))
}

func TestAppendLogCorrupt(t *T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, StoreFileName), []byte("a:1\na:b:c\n"), 0644))

	s, err := OpenAppendLog(dir)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get("a")
	assert.ErrorIs(t, err, record.ErrFormat)
}

func TestIndexedLogRebuildsIndex(t *T) {
	dir := t.TempDir()
	s, err := OpenIndexedLog(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("a", []byte("1")))
	require.NoError(t, s.Set("a", []byte("2")))
	require.NoError(t, s.Set("b", []byte("3")))
	require.NoError(t, s.Close())

	reopened, err := OpenIndexedLog(dir)
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "2", string(v))

	stats := reopened.Stats()
	assert.Equal(t, 3, stats.Structures[0].Records)
	assert.Equal(t, 2, stats.Structures[0].Keys)
}

func TestEnginesRejectDelimiters(t *T) {
	dir := t.TempDir()
	jsonStore, err := OpenJSONFile(filepath.Join(dir, "json"))
	require.NoError(t, err)
	appendLog, err := OpenAppendLog(filepath.Join(dir, "appendlog"))
	require.NoError(t, err)
	defer appendLog.Close()
	indexedLog, err := OpenIndexedLog(filepath.Join(dir, "indexedlog"))
	require.NoError(t, err)
	defer indexedLog.Close()

	for _, s := range []kv.Store{NewInMemory(), jsonStore, appendLog, indexedLog} {
		assert.ErrorIs(t, s.Set("a:b", []byte("1")), record.ErrInvalidRecord)
		assert.ErrorIs(t, s.Set("a", []byte("1\n")), record.ErrInvalidRecord)
	}
}
