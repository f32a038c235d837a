package memory

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"testing"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/infrastructure/blobstore"
)

type liveGaugeFake struct {
	values []int
}

func (f *liveGaugeFake) SetLiveHandles(n int) { f.values = append(f.values, n) }

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 5))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestTableLifecycle(t *testing.T) {
	gauge := &liveGaugeFake{}
	table := New(blobstore.Options{BaseURL: "http://preview", Observer: gauge})
	ctx := context.Background()
	data := pngBytes(t)

	handle, err := table.Materialize(ctx, domain.Resource{Data: data})
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if table.Live() != 1 {
		t.Fatalf("expected 1 live handle, got %d", table.Live())
	}
	data[0] = 0

	rc, got, err := table.Open(ctx, handle.ID)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if got.Height != 5 || len(body) == 0 || body[0] != 0x89 {
		t.Fatalf("expected stored copy of png, got %+v first byte %x", got, body[0])
	}

	if err := table.Release(ctx, handle.ID); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := table.Release(ctx, handle.ID); err != nil {
		t.Fatalf("second Release() error = %v", err)
	}
	if table.Live() != 0 {
		t.Fatalf("expected no live handles, got %d", table.Live())
	}
	if _, _, err := table.Open(ctx, handle.ID); !domain.IsKind(err, domain.ErrHandleNotFound) {
		t.Fatalf("expected ErrHandleNotFound, got %v", err)
	}
	if len(gauge.values) != 2 || gauge.values[0] != 1 || gauge.values[1] != 0 {
		t.Fatalf("unexpected gauge updates %v", gauge.values)
	}
}

func TestTableRejectsUndecodable(t *testing.T) {
	table := New(blobstore.Options{})
	if _, err := table.Materialize(context.Background(), domain.Resource{Data: []byte("<html>")}); !domain.IsKind(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if table.Live() != 0 {
		t.Fatalf("expected nothing materialized")
	}
}
