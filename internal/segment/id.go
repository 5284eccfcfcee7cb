package segment

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

const filePrefix = "segment_"

var ids struct {
	sync.Mutex
	last int64
}

// NextID returns a time based id that is strictly greater than every id
// previously returned or passed to ObserveID.
func NextID() int64 {
	ids.Lock()
	defer ids.Unlock()

	id := time.Now().UnixNano()
	if id <= ids.last {
		id = ids.last + 1
	}
	ids.last = id
	return id
}

// ObserveID makes sure ids issued later sort after id, even if the clock moved
// backwards since id was created.
func ObserveID(id int64) {
	ids.Lock()
	defer ids.Unlock()
	if id > ids.last {
		ids.last = id
	}
}

// FileName returns the name of the file holding the segment with the given id.
func FileName(id int64) string {
	return fmt.Sprintf("%s%d", filePrefix, id)
}

// ParseFileName extracts the id from a segment file name.
func ParseFileName(name string) (int64, error) {
	if !strings.HasPrefix(name, filePrefix) {
		return 0, fmt.Errorf("not a segment file: %q", name)
	}
	return strconv.ParseInt(strings.TrimPrefix(name, filePrefix), 10, 64)
}
