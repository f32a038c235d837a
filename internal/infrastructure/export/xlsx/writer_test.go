package xlsx

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
)

func TestWriteDocumentsProducesCSVColumns(t *testing.T) {
	category := "Facture"
	confidence := 0.87
	words := 120
	language := "fra"
	created := "2024-02-03T10:11:12.123456"

	export := domain.JSONExport{
		Total: 2,
		Documents: []domain.ExportedDocument{
			{
				ID: 1, Filename: "facture.pdf", FileType: domain.FileTypePDF,
				Category: &category, Confidence: &confidence,
				Metadata:  &domain.ExportMetadata{WordCount: &words, Language: &language},
				CreatedAt: &created,
			},
			{ID: 2, Filename: "scan.png", FileType: domain.FileTypeImage},
		},
	}

	var buf bytes.Buffer
	if err := NewWriter().WriteDocuments(&buf, export); err != nil {
		t.Fatalf("WriteDocuments() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][10] != "Date de création" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	first := rows[1]
	if first[1] != "facture.pdf" || first[3] != "Facture" || first[5] != "120" || first[6] != "fra" || first[10] != "2024-02-03 10:11:12" {
		t.Fatalf("unexpected first row %v", first)
	}
	second := rows[2]
	if second[3] != "Non classé" || second[6] != "N/A" {
		t.Fatalf("unexpected defaults in second row %v", second)
	}
}
