package sstable

// SSTableIterator walks the records of a table in key order. Each call to Next
// returns a new iterator positioned at the following record.
type SSTableIterator struct {
	tbl        *SSTable
	key        string
	value      []byte
	nextOffset int64
}

// Next returns nil once the end of the table is reached.
func (s SSTableIterator) Next() (*SSTableIterator, error) {
	if s.nextOffset >= int64(s.tbl.data.Len()) {
		return nil, nil
	}

	key, value, next, err := s.tbl.readRecord(s.nextOffset)
	if err != nil {
		return nil, err
	}

	return &SSTableIterator{
		tbl:        s.tbl,
		key:        key,
		value:      value,
		nextOffset: next,
	}, nil
}

func (s SSTableIterator) Value() (string, []byte) {
	return s.key, s.value
}
