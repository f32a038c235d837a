package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/core/ports"
	"github.com/kirillkom/smart-document-manager/internal/infrastructure/blobstore"
)

type entry struct {
	handle domain.ResourceHandle
	data   []byte
}

// Table keeps materialized resources in process memory. Thread-safe.
type Table struct {
	opts blobstore.Options
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

var _ ports.HandleTable = (*Table)(nil)

func New(opts blobstore.Options) *Table {
	return &Table{
		opts:    opts.Normalize(),
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

func (t *Table) Materialize(_ context.Context, res domain.Resource) (*domain.ResourceHandle, error) {
	handle, err := blobstore.Inspect(res, t.opts, t.now())
	if err != nil {
		return nil, err
	}
	data := make([]byte, len(res.Data))
	copy(data, res.Data)

	t.mu.Lock()
	t.entries[handle.ID] = entry{handle: *handle, data: data}
	live := len(t.entries)
	t.mu.Unlock()

	t.report(live)
	return handle, nil
}

// Release drops the entry. Unknown ids are ignored.
func (t *Table) Release(_ context.Context, id string) error {
	t.mu.Lock()
	_, ok := t.entries[id]
	delete(t.entries, id)
	live := len(t.entries)
	t.mu.Unlock()

	if ok {
		t.report(live)
	}
	return nil
}

func (t *Table) Open(_ context.Context, id string) (io.ReadCloser, *domain.ResourceHandle, error) {
	t.mu.RLock()
	e, ok := t.entries[id]
	t.mu.RUnlock()
	if !ok {
		return nil, nil, domain.WrapError(domain.ErrHandleNotFound, "open handle", fmt.Errorf("id %s", id))
	}
	handle := e.handle
	return io.NopCloser(bytes.NewReader(e.data)), &handle, nil
}

func (t *Table) Live() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func (t *Table) report(live int) {
	if t.opts.Observer != nil {
		t.opts.Observer.SetLiveHandles(live)
	}
}
