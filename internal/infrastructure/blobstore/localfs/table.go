package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/core/ports"
	"github.com/kirillkom/smart-document-manager/internal/infrastructure/blobstore"
)

// Table writes each materialized resource to its own file under basePath.
// Handle metadata lives in memory; files of a previous process are not adopted.
type Table struct {
	basePath string
	opts     blobstore.Options
	now      func() time.Time

	mu      sync.RWMutex
	handles map[string]domain.ResourceHandle
}

var _ ports.HandleTable = (*Table)(nil)

func New(basePath string, opts blobstore.Options) (*Table, error) {
	if basePath == "" {
		basePath = "./data/blobs"
	}
	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &Table{
		basePath: basePath,
		opts:     opts.Normalize(),
		now:      time.Now,
		handles:  make(map[string]domain.ResourceHandle),
	}, nil
}

func (t *Table) Materialize(_ context.Context, res domain.Resource) (*domain.ResourceHandle, error) {
	handle, err := blobstore.Inspect(res, t.opts, t.now())
	if err != nil {
		return nil, err
	}

	path := t.path(*handle)
	if err := os.WriteFile(path, res.Data, 0o600); err != nil {
		return nil, fmt.Errorf("write blob file: %w", err)
	}

	t.mu.Lock()
	t.handles[handle.ID] = *handle
	live := len(t.handles)
	t.mu.Unlock()

	t.report(live)
	return handle, nil
}

// Release removes the file. Unknown ids are ignored.
func (t *Table) Release(_ context.Context, id string) error {
	t.mu.Lock()
	handle, ok := t.handles[id]
	delete(t.handles, id)
	live := len(t.handles)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	t.report(live)

	if err := os.Remove(t.path(handle)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove blob file: %w", err)
	}
	return nil
}

func (t *Table) Open(_ context.Context, id string) (io.ReadCloser, *domain.ResourceHandle, error) {
	t.mu.RLock()
	handle, ok := t.handles[id]
	t.mu.RUnlock()
	if !ok {
		return nil, nil, domain.WrapError(domain.ErrHandleNotFound, "open handle", fmt.Errorf("id %s", id))
	}

	f, err := os.Open(t.path(handle))
	if err != nil {
		return nil, nil, fmt.Errorf("open blob file: %w", err)
	}
	return f, &handle, nil
}

func (t *Table) Live() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.handles)
}

func (t *Table) path(handle domain.ResourceHandle) string {
	return filepath.Join(t.basePath, handle.ID+blobstore.Extension(handle.ContentType))
}

func (t *Table) report(live int) {
	if t.opts.Observer != nil {
		t.opts.Observer.SetLiveHandles(live)
	}
}
