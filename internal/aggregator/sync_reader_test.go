package aggregator_test

import (
	"sync"

	"invhistory/internal/model"
)

// syncReader 为并发预读包装 memReader
type syncReader struct {
	mu    sync.Mutex
	inner *memReader
}

func (r *syncReader) ReadSnapshot(location string) (*model.SnapshotTable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inner.ReadSnapshot(location)
}
