package domain

import (
	"sort"
	"time"
)

type FileType string

const (
	FileTypePDF   FileType = "PDF"
	FileTypeImage FileType = "IMAGE"
)

type DocumentMetadata struct {
	ID          int64     `json:"id"`
	DocumentID  int64     `json:"document_id"`
	WordCount   *int      `json:"word_count,omitempty"`
	CharCount   *int      `json:"char_count,omitempty"`
	LineCount   *int      `json:"line_count,omitempty"`
	Language    string    `json:"language,omitempty"`
	ImageWidth  *int      `json:"image_width,omitempty"`
	ImageHeight *int      `json:"image_height,omitempty"`
	ImageSizeKB *float64  `json:"image_size_kb,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Document struct {
	ID            int64              `json:"id"`
	Filename      string             `json:"filename"`
	FileType      FileType           `json:"file_type,omitempty"`
	Filepath      string             `json:"filepath"`
	ExtractedText string             `json:"extracted_text,omitempty"`
	Category      string             `json:"category,omitempty"`
	Confidence    float64            `json:"confidence,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     *time.Time         `json:"updated_at,omitempty"`
	Metadata      []DocumentMetadata `json:"doc_metadata"`
}

type UploadResult struct {
	Message    string `json:"message"`
	DocumentID int64  `json:"document_id"`
	Filename   string `json:"filename"`
	Filepath   string `json:"filepath"`
}

type DeleteResult struct {
	Message    string `json:"message"`
	DocumentID int64  `json:"document_id"`
}

type OCRResult struct {
	DocumentID     int64   `json:"document_id"`
	ExtractedText  string  `json:"extracted_text"`
	WordCount      int     `json:"word_count"`
	Language       string  `json:"language"`
	ProcessingTime float64 `json:"processing_time"`
}

type OCRLanguages struct {
	Languages []string `json:"languages"`
	Default   string   `json:"default"`
}

type Classification struct {
	DocumentID     int64              `json:"document_id"`
	Category       string             `json:"category"`
	Confidence     float64            `json:"confidence"`
	AllPredictions map[string]float64 `json:"all_predictions"`
}

type BatchClassificationItem struct {
	DocumentID int64   `json:"document_id"`
	Success    bool    `json:"success"`
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
}

type BatchClassification struct {
	Total      int                       `json:"total"`
	Successful int                       `json:"successful"`
	Failed     int                       `json:"failed"`
	Results    []BatchClassificationItem `json:"results"`
}

type CategoryCatalog struct {
	Categories []string       `json:"categories"`
	ModelInfo  map[string]any `json:"model_info,omitempty"`
}

// FeatureImportance holds the classifier's highest-weighted words for a category.
type FeatureImportance struct {
	Category    string             `json:"category"`
	TopFeatures map[string]float64 `json:"top_features"`
}

type FeatureWeight struct {
	Word   string
	Weight float64
}

// Ranked returns the features by descending weight, ties broken by word.
func (f FeatureImportance) Ranked() []FeatureWeight {
	out := make([]FeatureWeight, 0, len(f.TopFeatures))
	for word, weight := range f.TopFeatures {
		out = append(out, FeatureWeight{Word: word, Weight: weight})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Word < out[j].Word
	})
	return out
}

// AnalysisResult combines the outputs of the upload workflow steps.
type AnalysisResult struct {
	DocumentID     int64              `json:"document_id"`
	Filename       string             `json:"filename"`
	ExtractedText  string             `json:"extracted_text"`
	WordCount      int                `json:"word_count"`
	Language       string             `json:"language"`
	ProcessingTime float64            `json:"processing_time"`
	Category       string             `json:"category"`
	Confidence     float64            `json:"confidence"`
	AllPredictions map[string]float64 `json:"all_predictions"`
}

// GuestAnalysis is returned by the anonymous analysis endpoint; nothing is persisted server-side.
// Confidence is a percentage here, unlike Classification.
type GuestAnalysis struct {
	Filename   string  `json:"-"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	TextLength int     `json:"text_length"`
	WordCount  int     `json:"word_count"`
	Message    string  `json:"message,omitempty"`
}

// UploadFile is a local file queued for upload.
type UploadFile struct {
	Name     string
	MimeType string
	Size     int64
	Data     []byte
}
