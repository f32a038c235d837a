package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
)

func sampleDocuments() []domain.Document {
	return []domain.Document{
		{ID: 1, Filename: "Facture_2024.pdf", FileType: domain.FileTypePDF, Category: "Facture", Confidence: 0.92},
		{ID: 2, Filename: "cv_alice.png", FileType: domain.FileTypeImage, Category: "CV", Confidence: 0.65},
		{ID: 3, Filename: "scan.jpg", FileType: domain.FileTypeImage},
		{ID: 4, Filename: "facture_mars.pdf", FileType: domain.FileTypePDF, Category: "Facture", Confidence: 0.4},
	}
}

func ids(docs []domain.Document) []int64 {
	out := make([]int64, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.ID)
	}
	return out
}

func TestFilterCombinesCriteria(t *testing.T) {
	docs := sampleDocuments()
	cases := []struct {
		name   string
		filter DocumentFilter
		want   []int64
	}{
		{name: "no filter", filter: DocumentFilter{}, want: []int64{1, 2, 3, 4}},
		{name: "all sentinel", filter: DocumentFilter{Category: FilterAll, FileType: FilterAll}, want: []int64{1, 2, 3, 4}},
		{name: "category", filter: DocumentFilter{Category: "Facture"}, want: []int64{1, 4}},
		{name: "file type", filter: DocumentFilter{FileType: "IMAGE"}, want: []int64{2, 3}},
		{name: "search is case insensitive", filter: DocumentFilter{Search: "FACTURE"}, want: []int64{1, 4}},
		{name: "combined", filter: DocumentFilter{Category: "Facture", Search: "mars"}, want: []int64{4}},
		{name: "nothing", filter: DocumentFilter{Category: "Contrat"}, want: []int64{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ids(Filter(docs, tc.filter)); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
	if len(docs) != 4 {
		t.Fatalf("expected input slice untouched")
	}
}

func TestFacetsFirstSeenOrder(t *testing.T) {
	facets := Facets(sampleDocuments())
	if !reflect.DeepEqual(facets.Categories, []string{FilterAll, "Facture", "CV"}) {
		t.Fatalf("unexpected categories: %v", facets.Categories)
	}
	if !reflect.DeepEqual(facets.FileTypes, []string{FilterAll, "PDF", "IMAGE"}) {
		t.Fatalf("unexpected file types: %v", facets.FileTypes)
	}
}

func TestBandFor(t *testing.T) {
	cases := map[float64]ConfidenceBand{
		0:    ConfidenceNone,
		0.3:  ConfidenceLow,
		0.6:  ConfidenceMedium,
		0.79: ConfidenceMedium,
		0.8:  ConfidenceHigh,
		1:    ConfidenceHigh,
	}
	for conf, want := range cases {
		if got := BandFor(conf); got != want {
			t.Fatalf("confidence %.2f: expected %s, got %s", conf, want, got)
		}
	}
}

func TestDocumentBrowserDeleteReloads(t *testing.T) {
	api := &documentAPIFake{docs: sampleDocuments()}
	browser := NewDocumentBrowser(api)

	docs, err := browser.Delete(context.Background(), 2)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(api.deleted) != 1 || api.deleted[0] != 2 {
		t.Fatalf("expected delete of 2, got %v", api.deleted)
	}
	if api.listCalls != 1 || len(docs) != 4 {
		t.Fatalf("expected reload after delete, got %d calls and %d docs", api.listCalls, len(docs))
	}
}

func TestDocumentBrowserDeleteFailureSkipsReload(t *testing.T) {
	api := &documentAPIFake{deleteErr: domain.WrapError(domain.ErrDocumentNotFound, "delete", errors.New("404"))}
	browser := NewDocumentBrowser(api)

	if _, err := browser.Delete(context.Background(), 9); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if api.listCalls != 0 {
		t.Fatalf("expected no reload on failure")
	}
}

func TestDocumentBrowserGetAndImageURL(t *testing.T) {
	browser := NewDocumentBrowser(&documentAPIFake{docs: sampleDocuments()})

	doc, err := browser.Get(context.Background(), 3)
	if err != nil || doc.Filename != "scan.jpg" {
		t.Fatalf("expected scan.jpg, got %+v (%v)", doc, err)
	}
	if _, err := browser.Get(context.Background(), 99); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if got := browser.ImageURL(3); got != "http://api/documents/3/image" {
		t.Fatalf("unexpected image url %s", got)
	}
}

func TestIconFor(t *testing.T) {
	cases := map[domain.FileType]IconKind{
		domain.FileTypePDF:   IconPDF,
		domain.FileTypeImage: IconImage,
		"image":              IconImage,
		"":                   IconFile,
		"DOCX":               IconFile,
	}
	for fileType, want := range cases {
		if got := IconFor(fileType); got != want {
			t.Fatalf("IconFor(%q): expected %s, got %s", fileType, want, got)
		}
	}
	if !HasImagePreview(domain.Document{FileType: domain.FileTypeImage}) {
		t.Fatalf("expected image documents to have a preview")
	}
	if HasImagePreview(domain.Document{FileType: domain.FileTypePDF}) {
		t.Fatalf("expected no preview for pdf documents")
	}
}
