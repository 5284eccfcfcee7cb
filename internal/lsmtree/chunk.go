package lsmtree

// A chunk is one sorted structure of the tree: the memtable or a flushed
// SSTable.
type chunk interface {
	name() string
	get(key string) ([]byte, error)
	// iterator returns the first entry in key order, or nil if the chunk is
	// empty.
	iterator() (chunkIterator, error)
	numEntries() int64
}

type chunkIterator interface {
	// next returns nil at the end of the chunk.
	next() (chunkIterator, error)
	value() (string, []byte)
}

type entry struct {
	key  string
	data []byte
}

func getEntry(it chunkIterator) *entry {
	if it == nil {
		return nil
	}
	key, data := it.value()
	return &entry{
		key:  key,
		data: data,
	}
}

// Finds the minimum entry by key. On equal keys the lowest index wins.
func getMin(e []*entry) (int, bool) {
	exists := false
	min := -1
	minKey := ""

	for i := 0; i < len(e); i++ {
		if e[i] != nil {
			if !exists || e[i].key < minKey {
				minKey = e[i].key
				min = i
			}
			exists = true
		}
	}
	return min, exists
}

// mergeIterator yields the union of several sorted chunks in key order, one
// entry per key. Iterators are given newest first, so for a key present in
// several chunks the newest value is returned and the rest are skipped.
type mergeIterator struct {
	its     []chunkIterator
	entries []*entry
	prevKey *string
}

func newMergeIterator(its []chunkIterator) *mergeIterator {
	entries := make([]*entry, len(its))
	// Populate all entries with the current values
	for i := 0; i < len(its); i++ {
		entries[i] = getEntry(its[i])
	}
	return &mergeIterator{
		its:     its,
		entries: entries,
	}
}

// next returns nil once every iterator is exhausted.
func (m *mergeIterator) next() (*entry, error) {
	for {
		// Find the key with the lowest index
		min, exists := getMin(m.entries)
		// if we couldn't find any keys, we are done
		if !exists {
			return nil, nil
		}
		e := m.entries[min]

		// Progress the chosen iterator and load the next value
		it, err := m.its[min].next()
		if err != nil {
			return nil, err
		}
		m.its[min] = it
		m.entries[min] = getEntry(it)

		if m.prevKey != nil && *m.prevKey == e.key {
			continue
		}
		m.prevKey = &e.key
		return e, nil
	}
}

// sliceIterator iterates over entries already sorted in memory.
type sliceIterator struct {
	entries []entry
	i       int
}

func newSliceIterator(entries []entry) chunkIterator {
	if len(entries) == 0 {
		return nil
	}
	return sliceIterator{entries: entries}
}

func (s sliceIterator) next() (chunkIterator, error) {
	if s.i+1 >= len(s.entries) {
		return nil, nil
	}
	return sliceIterator{entries: s.entries, i: s.i + 1}, nil
}

func (s sliceIterator) value() (string, []byte) {
	return s.entries[s.i].key, s.entries[s.i].data
}
