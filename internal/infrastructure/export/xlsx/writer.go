package xlsx

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/core/ports"
)

const SheetName = "Documents"

// Header mirrors the server's CSV export columns.
var Header = []any{
	"ID", "Nom du fichier", "Type", "Catégorie", "Confiance", "Nombre de mots",
	"Langue", "Largeur image", "Hauteur image", "Taille (Ko)", "Date de création",
}

const (
	uncategorized   = "Non classé"
	unknownLanguage = "N/A"
)

// Writer renders a document export as a single-sheet workbook.
type Writer struct{}

var _ ports.SpreadsheetWriter = Writer{}

func NewWriter() Writer {
	return Writer{}
}

func (Writer) WriteDocuments(w io.Writer, export domain.JSONExport) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := Header
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(Header))
	if err != nil {
		return fmt.Errorf("resolve header range: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, doc := range export.Documents {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("resolve row %d: %w", i+2, err)
		}
		row := documentRow(doc)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write document %d: %w", doc.ID, err)
		}
	}
	if err := f.SetColWidth(SheetName, "B", "B", 40); err != nil {
		return fmt.Errorf("size filename column: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func documentRow(doc domain.ExportedDocument) []any {
	category := uncategorized
	if doc.Category != nil && *doc.Category != "" {
		category = *doc.Category
	}
	confidence := 0.0
	if doc.Confidence != nil {
		confidence = *doc.Confidence
	}

	words, width, height, sizeKB, language := 0, 0, 0, 0.0, unknownLanguage
	if m := doc.Metadata; m != nil {
		words = derefInt(m.WordCount)
		width = derefInt(m.ImageWidth)
		height = derefInt(m.ImageHeight)
		if m.ImageSizeKB != nil {
			sizeKB = *m.ImageSizeKB
		}
		if m.Language != nil && *m.Language != "" {
			language = *m.Language
		}
	}

	created := ""
	if doc.CreatedAt != nil {
		created = formatCreatedAt(*doc.CreatedAt)
	}

	return []any{
		doc.ID, doc.Filename, string(doc.FileType), category, confidence,
		words, language, width, height, sizeKB, created,
	}
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func formatCreatedAt(raw string) string {
	for _, layout := range createdAtLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.Format("2006-01-02 15:04:05")
		}
	}
	return raw
}
