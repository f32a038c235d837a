package localfs

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/infrastructure/blobstore"
)

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 6)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestTableWritesAndRemovesFiles(t *testing.T) {
	dir := t.TempDir()
	table, err := New(dir, blobstore.Options{BaseURL: "http://preview"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	data := jpegBytes(t)

	handle, err := table.Materialize(ctx, domain.Resource{Data: data, ContentType: "image/jpg"})
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	path := filepath.Join(dir, handle.ID+".jpg")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected blob file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 file, got %v", info.Mode().Perm())
	}
	if handle.Width != 8 || handle.ContentType != "image/jpeg" {
		t.Fatalf("unexpected handle %+v", handle)
	}

	rc, _, err := table.Open(ctx, handle.ID)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(body, data) {
		t.Fatalf("expected stored bytes to round trip")
	}

	if err := table.Release(ctx, handle.ID); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, got %v", err)
	}
	if err := table.Release(ctx, "unknown"); err != nil {
		t.Fatalf("Release(unknown) error = %v", err)
	}
	if table.Live() != 0 {
		t.Fatalf("expected 0 live handles, got %d", table.Live())
	}
}

func TestTableRejectsOversizedPayload(t *testing.T) {
	table, err := New(t.TempDir(), blobstore.Options{MaxBytes: 16})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := table.Materialize(context.Background(), domain.Resource{Data: jpegBytes(t)}); !domain.IsKind(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}
