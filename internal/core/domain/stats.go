package domain

type Statistics struct {
	TotalDocuments      int            `json:"total_documents"`
	DocumentsByCategory map[string]int `json:"documents_by_category"`
	AverageConfidence   float64        `json:"average_confidence"`
	TotalWordsExtracted int            `json:"total_words_extracted"`
	DocumentsByType     map[string]int `json:"documents_by_type"`
	RecentDocuments     int            `json:"recent_documents"`
}

type CategoryStat struct {
	Category      string  `json:"category"`
	Count         int     `json:"count"`
	Percentage    float64 `json:"percentage"`
	AvgConfidence float64 `json:"avg_confidence"`
}

type CategoryStats struct {
	TotalClassified int            `json:"total_classified"`
	Message         string         `json:"message,omitempty"`
	Categories      []CategoryStat `json:"categories"`
}

type TimelinePoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type Timeline struct {
	PeriodDays int             `json:"period_days"`
	Timeline   []TimelinePoint `json:"timeline"`
}

type ExportMetadata struct {
	WordCount   *int     `json:"word_count"`
	Language    *string  `json:"language"`
	ImageWidth  *int     `json:"image_width"`
	ImageHeight *int     `json:"image_height"`
	ImageSizeKB *float64 `json:"image_size_kb"`
}

type ExportedDocument struct {
	ID            int64           `json:"id"`
	Filename      string          `json:"filename"`
	FileType      FileType        `json:"file_type"`
	Category      *string         `json:"category"`
	Confidence    *float64        `json:"confidence"`
	ExtractedText *string         `json:"extracted_text"`
	Metadata      *ExportMetadata `json:"metadata"`
	CreatedAt     *string         `json:"created_at"`
}

type JSONExport struct {
	Total      int                `json:"total"`
	ExportDate string             `json:"export_date"`
	Documents  []ExportedDocument `json:"documents"`
}
