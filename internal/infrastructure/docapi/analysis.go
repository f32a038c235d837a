package docapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
)

type documentRef struct {
	DocumentID int64 `json:"document_id"`
}

func (c *Client) PerformOCR(ctx context.Context, id int64) (*domain.OCRResult, error) {
	body, err := jsonBody("ocr", documentRef{DocumentID: id})
	if err != nil {
		return nil, err
	}
	var out domain.OCRResult
	if err := c.call(ctx, request{
		operation:   "ocr",
		method:      http.MethodPost,
		path:        "/ocr",
		body:        body,
		contentType: "application/json",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SupportedLanguages(ctx context.Context) (*domain.OCRLanguages, error) {
	var out domain.OCRLanguages
	if err := c.call(ctx, request{
		operation:  "ocr_languages",
		method:     http.MethodGet,
		path:       "/ocr/languages",
		idempotent: true,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ClassifyDocument(ctx context.Context, id int64) (*domain.Classification, error) {
	body, err := jsonBody("classify", documentRef{DocumentID: id})
	if err != nil {
		return nil, err
	}
	var out domain.Classification
	if err := c.call(ctx, request{
		operation:   "classify",
		method:      http.MethodPost,
		path:        "/classify",
		body:        body,
		contentType: "application/json",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ClassifyBatch(ctx context.Context, ids []int64) (*domain.BatchClassification, error) {
	if ids == nil {
		ids = []int64{}
	}
	body, err := jsonBody("classify_batch", ids)
	if err != nil {
		return nil, err
	}
	var out domain.BatchClassification
	if err := c.call(ctx, request{
		operation:   "classify_batch",
		method:      http.MethodPost,
		path:        "/classify/batch",
		body:        body,
		contentType: "application/json",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Categories(ctx context.Context) (*domain.CategoryCatalog, error) {
	var out domain.CategoryCatalog
	if err := c.call(ctx, request{
		operation:  "categories",
		method:     http.MethodGet,
		path:       "/classify/categories",
		idempotent: true,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DefaultFeatureCount is the number of features the server returns when none is requested.
const DefaultFeatureCount = 10

func (c *Client) FeatureImportance(ctx context.Context, category string, topN int) (*domain.FeatureImportance, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "feature_importance", errors.New("category is required"))
	}
	if topN <= 0 {
		topN = DefaultFeatureCount
	}
	query := url.Values{}
	query.Set("top_n", strconv.Itoa(topN))

	var out domain.FeatureImportance
	if err := c.call(ctx, request{
		operation:  "feature_importance",
		method:     http.MethodGet,
		path:       "/classify/feature-importance/" + url.PathEscape(category),
		query:      query,
		idempotent: true,
	}, &out); err != nil {
		return nil, err
	}
	if out.TopFeatures == nil {
		out.TopFeatures = map[string]float64{}
	}
	return &out, nil
}

// AnalyzeGuest sends the file to the anonymous analysis endpoint.
func (c *Client) AnalyzeGuest(ctx context.Context, file domain.UploadFile) (*domain.GuestAnalysis, error) {
	body, contentType, err := multipartBody(nil, "file", &file)
	if err != nil {
		return nil, err
	}
	var out domain.GuestAnalysis
	if err := c.call(ctx, request{
		operation:   "analyze_guest",
		method:      http.MethodPost,
		path:        "/analyze-guest",
		body:        body,
		contentType: contentType,
		anonymous:   true,
	}, &out); err != nil {
		return nil, err
	}
	out.Filename = file.Name
	return &out, nil
}
