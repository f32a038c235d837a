package usecase

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/core/ports"
)

const DefaultMaxUploadSize = 10 * 1024 * 1024

var allowedUploadTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
}

type UploadStep int

const (
	StepIdle UploadStep = iota
	StepUpload
	StepOCR
	StepClassification
	StepDone
)

func (s UploadStep) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepUpload:
		return "upload"
	case StepOCR:
		return "ocr"
	case StepClassification:
		return "classification"
	case StepDone:
		return "done"
	default:
		return "unknown"
	}
}

// WorkflowError reports the step at which the upload workflow stopped.
type WorkflowError struct {
	Step UploadStep
	Err  error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s step: %v", e.Step, e.Err)
}

func (e *WorkflowError) Unwrap() error { return e.Err }

type UploadWorkflowOptions struct {
	// StepDelay paces the visible progress between steps; zero disables it.
	StepDelay   time.Duration
	MaxFileSize int64
	OnStep      func(UploadStep)
}

type UploadWorkflow struct {
	docs      ports.DocumentAPI
	analysis  ports.AnalysisAPI
	inspector ports.DocumentInspector
	opts      UploadWorkflowOptions
}

func NewUploadWorkflow(
	docs ports.DocumentAPI,
	analysis ports.AnalysisAPI,
	inspector ports.DocumentInspector,
	opts UploadWorkflowOptions,
) *UploadWorkflow {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxUploadSize
	}
	return &UploadWorkflow{
		docs:      docs,
		analysis:  analysis,
		inspector: inspector,
		opts:      opts,
	}
}

// Run uploads the file, extracts its text and classifies it, in that order.
func (w *UploadWorkflow) Run(ctx context.Context, file domain.UploadFile) (*domain.AnalysisResult, error) {
	file, err := w.Validate(file)
	if err != nil {
		return nil, w.abort(StepIdle, err)
	}

	w.step(StepUpload)
	uploaded, err := w.docs.UploadDocument(ctx, file)
	if err != nil {
		return nil, w.abort(StepUpload, fmt.Errorf("upload document: %w", err))
	}
	if err := w.pause(ctx); err != nil {
		return nil, w.abort(StepUpload, err)
	}

	w.step(StepOCR)
	ocr, err := w.analysis.PerformOCR(ctx, uploaded.DocumentID)
	if err != nil {
		return nil, w.abort(StepOCR, fmt.Errorf("perform ocr: %w", err))
	}
	if err := w.pause(ctx); err != nil {
		return nil, w.abort(StepOCR, err)
	}

	w.step(StepClassification)
	cls, err := w.analysis.ClassifyDocument(ctx, uploaded.DocumentID)
	if err != nil {
		return nil, w.abort(StepClassification, fmt.Errorf("classify document: %w", err))
	}
	if err := w.pause(ctx); err != nil {
		return nil, w.abort(StepClassification, err)
	}

	w.step(StepDone)
	return &domain.AnalysisResult{
		DocumentID:     uploaded.DocumentID,
		Filename:       uploaded.Filename,
		ExtractedText:  ocr.ExtractedText,
		WordCount:      ocr.WordCount,
		Language:       ocr.Language,
		ProcessingTime: ocr.ProcessingTime,
		Category:       cls.Category,
		Confidence:     cls.Confidence,
		AllPredictions: cls.AllPredictions,
	}, nil
}

// AnalyzeGuest classifies a file without storing it server-side.
func (w *UploadWorkflow) AnalyzeGuest(ctx context.Context, file domain.UploadFile) (*domain.GuestAnalysis, error) {
	file, err := w.Validate(file)
	if err != nil {
		return nil, err
	}
	result, err := w.analysis.AnalyzeGuest(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("analyze guest document: %w", err)
	}
	return result, nil
}

// Validate checks type, size and, for PDFs, that the document parses.
// The returned file carries the normalized MIME type.
func (w *UploadWorkflow) Validate(file domain.UploadFile) (domain.UploadFile, error) {
	if len(file.Data) == 0 {
		return file, domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("file is empty"))
	}
	if file.Size == 0 {
		file.Size = int64(len(file.Data))
	}
	if file.Size > w.opts.MaxFileSize {
		return file, domain.WrapError(domain.ErrInvalidInput, "validate upload",
			fmt.Errorf("file too large: %d bytes, max %d", file.Size, w.opts.MaxFileSize))
	}

	file.MimeType = DetectMimeType(file.Name, file.MimeType, file.Data)
	if !allowedUploadTypes[file.MimeType] {
		return file, domain.WrapError(domain.ErrInvalidInput, "validate upload",
			fmt.Errorf("unsupported file type %q: accepted PDF, PNG, JPG", file.MimeType))
	}

	if file.MimeType == "application/pdf" && w.inspector != nil {
		pages, err := w.inspector.PageCount(file.Data)
		if err != nil {
			return file, domain.WrapError(domain.ErrInvalidInput, "validate upload", fmt.Errorf("unreadable pdf: %w", err))
		}
		if pages == 0 {
			return file, domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("pdf has no pages"))
		}
	}
	return file, nil
}

// DetectMimeType prefers the declared type, then the extension, then content sniffing.
func DetectMimeType(name, declared string, data []byte) string {
	candidate := normalizeMimeType(declared)
	if candidate == "" || candidate == "application/octet-stream" {
		candidate = normalizeMimeType(mime.TypeByExtension(strings.ToLower(filepath.Ext(name))))
	}
	if candidate == "" || candidate == "application/octet-stream" {
		candidate = normalizeMimeType(http.DetectContentType(data))
	}
	return candidate
}

func normalizeMimeType(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if idx := strings.Index(value, ";"); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	if value == "image/jpg" {
		return "image/jpeg"
	}
	return value
}

func (w *UploadWorkflow) abort(step UploadStep, err error) error {
	w.step(StepIdle)
	return &WorkflowError{Step: step, Err: err}
}

func (w *UploadWorkflow) step(step UploadStep) {
	if w.opts.OnStep != nil {
		w.opts.OnStep(step)
	}
}

func (w *UploadWorkflow) pause(ctx context.Context) error {
	if w.opts.StepDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(w.opts.StepDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
