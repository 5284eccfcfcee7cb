package lsmtree

import (
	. "testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entries(kv ...string) []entry {
	res := []entry{}
	for i := 0; i < len(kv); i += 2 {
		res = append(res, entry{key: kv[i], data: []byte(kv[i+1])})
	}
	return res
}

func drain(t *T, m *mergeIterator) []string {
	res := []string{}
	for {
		e, err := m.next()
		require.NoError(t, err)
		if e == nil {
			return res
		}
		res = append(res, e.key+"="+string(e.data))
	}
}

func TestGetMinPrefersLowestIndex(t *T) {
	min, exists := getMin([]*entry{nil, {key: "b"}, {key: "a"}, {key: "a"}})
	assert.True(t, exists)
	assert.Equal(t, 2, min)

	_, exists = getMin([]*entry{nil, nil})
	assert.False(t, exists)
}

func TestMergeNewestWins(t *T) {
	newest := newSliceIterator(entries("a", "3", "c", "3"))
	middle := newSliceIterator(entries("a", "2", "b", "2", "c", "2"))
	oldest := newSliceIterator(entries("a", "1", "d", "1"))

	merged := drain(t, newMergeIterator([]chunkIterator{newest, middle, oldest}))
	assert.Equal(t, []string{"a=3", "b=2", "c=3", "d=1"}, merged)
}

func TestMergeEmptyIterators(t *T) {
	assert.Empty(t, drain(t, newMergeIterator(nil)))
	assert.Empty(t, drain(t, newMergeIterator([]chunkIterator{newSliceIterator(nil), nil})))

	merged := drain(t, newMergeIterator([]chunkIterator{nil, newSliceIterator(entries("x", "1"))}))
	assert.Equal(t, []string{"x=1"}, merged)
}

func TestMemtableIteratesInKeyOrder(t *T) {
	m, err := openMemtable(t.TempDir(), "test")
	require.NoError(t, err)
	defer m.close()

	for _, k := range []string{"d", "a", "c", "b", "a"} {
		require.NoError(t, m.set(k, []byte(k)))
	}

	merged := drain(t, newMergeIterator([]chunkIterator{must(m.iterator())}))
	assert.Equal(t, []string{"a=a", "b=b", "c=c", "d=d"}, merged)
}

func must(it chunkIterator, err error) chunkIterator {
	if err != nil {
		panic(err)
	}
	return it
}
