package pdf

import (
	"fmt"
	"strings"
	"testing"
)

// minimalPDF builds a valid single-page document with a correct xref table.
func minimalPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] >>",
	}
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return []byte(b.String())
}

func TestPageCountSinglePage(t *testing.T) {
	pages, err := NewInspector().PageCount(minimalPDF())
	if err != nil {
		t.Fatalf("PageCount() error = %v", err)
	}
	if pages != 1 {
		t.Fatalf("expected 1 page, got %d", pages)
	}
}

func TestPageCountRejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("not a pdf at all"), []byte("%PDF-1.4\ntruncated")} {
		if _, err := NewInspector().PageCount(data); err == nil {
			t.Fatalf("expected error for %q", data)
		}
	}
}
