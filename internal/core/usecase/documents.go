package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/core/ports"
)

// FilterAll disables a filter criterion.
const FilterAll = "all"

const defaultDocumentPageSize = 100

type DocumentFilter struct {
	Category string
	FileType string
	Search   string
}

type DocumentFacets struct {
	Categories []string
	FileTypes  []string
}

type ConfidenceBand string

const (
	ConfidenceNone   ConfidenceBand = "none"
	ConfidenceLow    ConfidenceBand = "low"
	ConfidenceMedium ConfidenceBand = "medium"
	ConfidenceHigh   ConfidenceBand = "high"
)

type IconKind string

const (
	IconPDF   IconKind = "pdf"
	IconImage IconKind = "image"
	IconFile  IconKind = "file"
)

type DocumentBrowser struct {
	api ports.DocumentAPI
}

func NewDocumentBrowser(api ports.DocumentAPI) *DocumentBrowser {
	return &DocumentBrowser{api: api}
}

func (b *DocumentBrowser) Load(ctx context.Context) ([]domain.Document, error) {
	docs, err := b.api.ListDocuments(ctx, 0, defaultDocumentPageSize)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (b *DocumentBrowser) Get(ctx context.Context, id int64) (*domain.Document, error) {
	doc, err := b.api.GetDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get document %d: %w", id, err)
	}
	return doc, nil
}

// Delete removes a document and returns the reloaded list.
func (b *DocumentBrowser) Delete(ctx context.Context, id int64) ([]domain.Document, error) {
	if _, err := b.api.DeleteDocument(ctx, id); err != nil {
		return nil, fmt.Errorf("delete document %d: %w", id, err)
	}
	return b.Load(ctx)
}

func (b *DocumentBrowser) ImageURL(id int64) string {
	return b.api.DocumentImageURL(id)
}

// Filter narrows docs without modifying the input slice.
func Filter(docs []domain.Document, filter DocumentFilter) []domain.Document {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		if active(filter.Category) && doc.Category != filter.Category {
			continue
		}
		if active(filter.FileType) && string(doc.FileType) != filter.FileType {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(doc.Filename), search) {
			continue
		}
		out = append(out, doc)
	}
	return out
}

// Facets lists the selectable filter values in first-seen order, each prefixed by FilterAll.
func Facets(docs []domain.Document) DocumentFacets {
	facets := DocumentFacets{
		Categories: []string{FilterAll},
		FileTypes:  []string{FilterAll},
	}
	seenCategory := map[string]bool{}
	seenType := map[string]bool{}
	for _, doc := range docs {
		if doc.Category != "" && !seenCategory[doc.Category] {
			seenCategory[doc.Category] = true
			facets.Categories = append(facets.Categories, doc.Category)
		}
		fileType := string(doc.FileType)
		if !seenType[fileType] {
			seenType[fileType] = true
			facets.FileTypes = append(facets.FileTypes, fileType)
		}
	}
	return facets
}

func BandFor(confidence float64) ConfidenceBand {
	switch {
	case confidence <= 0:
		return ConfidenceNone
	case confidence >= 0.8:
		return ConfidenceHigh
	case confidence >= 0.6:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func IconFor(fileType domain.FileType) IconKind {
	switch domain.FileType(strings.ToUpper(string(fileType))) {
	case domain.FileTypePDF:
		return IconPDF
	case domain.FileTypeImage:
		return IconImage
	default:
		return IconFile
	}
}

// HasImagePreview reports whether the detail view shows the stored image.
func HasImagePreview(doc domain.Document) bool {
	return IconFor(doc.FileType) == IconImage
}

func active(criterion string) bool {
	return criterion != "" && criterion != FilterAll
}
