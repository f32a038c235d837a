package ports

import (
	"context"
	"io"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
)

// CredentialSource returns the bearer token to present; an empty token means none is set.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}

// ResourceFetcher performs an authenticated read of a binary resource.
type ResourceFetcher interface {
	FetchResource(ctx context.Context, url, bearerToken string) (domain.Resource, error)
}

// HandleTable materializes fetched payloads into releasable handles.
// Release must be idempotent: unknown or already released ids are a no-op.
type HandleTable interface {
	Materialize(ctx context.Context, res domain.Resource) (*domain.ResourceHandle, error)
	Release(ctx context.Context, handleID string) error
	Open(ctx context.Context, handleID string) (io.ReadCloser, *domain.ResourceHandle, error)
	Live() int
}

// SessionStore persists the credential state across process runs.
type SessionStore interface {
	Load(ctx context.Context) (*domain.Session, error)
	Save(ctx context.Context, session domain.Session) error
	Clear(ctx context.Context) error
}

// AuthEventBus delivers authentication state changes to explicit subscribers.
type AuthEventBus interface {
	Publish(ctx context.Context, event domain.AuthEvent) error
	Subscribe(handler func(domain.AuthEvent)) (unsubscribe func())
}

// AuthAPI is the backend authentication surface.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (*domain.TokenResponse, error)
	Register(ctx context.Context, input domain.RegisterInput) (*domain.TokenResponse, error)
	CheckAuth(ctx context.Context) (*domain.User, error)
}

// DocumentAPI is the backend document surface.
type DocumentAPI interface {
	UploadDocument(ctx context.Context, file domain.UploadFile) (*domain.UploadResult, error)
	ListDocuments(ctx context.Context, skip, limit int) ([]domain.Document, error)
	GetDocument(ctx context.Context, id int64) (*domain.Document, error)
	DeleteDocument(ctx context.Context, id int64) (*domain.DeleteResult, error)
	DocumentImageURL(id int64) string
}

// AnalysisAPI covers OCR, classification and guest analysis.
type AnalysisAPI interface {
	PerformOCR(ctx context.Context, documentID int64) (*domain.OCRResult, error)
	SupportedLanguages(ctx context.Context) (*domain.OCRLanguages, error)
	ClassifyDocument(ctx context.Context, documentID int64) (*domain.Classification, error)
	ClassifyBatch(ctx context.Context, documentIDs []int64) (*domain.BatchClassification, error)
	Categories(ctx context.Context) (*domain.CategoryCatalog, error)
	FeatureImportance(ctx context.Context, category string, topN int) (*domain.FeatureImportance, error)
	AnalyzeGuest(ctx context.Context, file domain.UploadFile) (*domain.GuestAnalysis, error)
}

// StatsAPI covers dashboard statistics and exports.
type StatsAPI interface {
	Statistics(ctx context.Context) (*domain.Statistics, error)
	CategoryStatistics(ctx context.Context) (*domain.CategoryStats, error)
	TimelineStatistics(ctx context.Context, days int) (*domain.Timeline, error)
	ExportCSV(ctx context.Context) ([]byte, error)
	ExportJSON(ctx context.Context) (*domain.JSONExport, error)
}

// DocumentInspector validates a local file before upload.
type DocumentInspector interface {
	PageCount(data []byte) (int, error)
}

// SpreadsheetWriter renders exported documents as a workbook.
type SpreadsheetWriter interface {
	WriteDocuments(w io.Writer, export domain.JSONExport) error
}
