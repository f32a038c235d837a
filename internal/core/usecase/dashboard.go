package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/core/ports"
)

const defaultTimelineDays = 30

type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportJSON ExportFormat = "json"
	ExportXLSX ExportFormat = "xlsx"
)

func ParseExportFormat(value string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(value))); f {
	case ExportCSV, ExportJSON, ExportXLSX:
		return f, nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "parse export format", fmt.Errorf("unknown format %q", value))
	}
}

type Dashboard struct {
	Stats         domain.Statistics
	CategoryStats domain.CategoryStats
}

type PieSlice struct {
	Name  string
	Value int
}

type BarPoint struct {
	Name              string
	Documents         int
	ConfidencePercent float64
}

// PieData returns documents per category sorted by category name.
func (d Dashboard) PieData() []PieSlice {
	out := make([]PieSlice, 0, len(d.Stats.DocumentsByCategory))
	for name, value := range d.Stats.DocumentsByCategory {
		out = append(out, PieSlice{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (d Dashboard) BarData() []BarPoint {
	out := make([]BarPoint, 0, len(d.CategoryStats.Categories))
	for _, cat := range d.CategoryStats.Categories {
		out = append(out, BarPoint{
			Name:              cat.Category,
			Documents:         cat.Count,
			ConfidencePercent: math.Round(cat.AvgConfidence*1000) / 10,
		})
	}
	return out
}

type DashboardUseCase struct {
	api    ports.StatsAPI
	sheets ports.SpreadsheetWriter
}

func NewDashboardUseCase(api ports.StatsAPI, sheets ports.SpreadsheetWriter) *DashboardUseCase {
	return &DashboardUseCase{api: api, sheets: sheets}
}

// Load fetches global and per-category statistics concurrently.
func (uc *DashboardUseCase) Load(ctx context.Context) (*Dashboard, error) {
	var dash Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := uc.api.Statistics(gctx)
		if err != nil {
			return fmt.Errorf("load statistics: %w", err)
		}
		dash.Stats = *stats
		return nil
	})
	g.Go(func() error {
		cats, err := uc.api.CategoryStatistics(gctx)
		if err != nil {
			return fmt.Errorf("load category statistics: %w", err)
		}
		dash.CategoryStats = *cats
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &dash, nil
}

func (uc *DashboardUseCase) Timeline(ctx context.Context, days int) (*domain.Timeline, error) {
	if days <= 0 {
		days = defaultTimelineDays
	}
	timeline, err := uc.api.TimelineStatistics(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("load timeline: %w", err)
	}
	return timeline, nil
}

// Export writes every stored document to w in the requested format.
func (uc *DashboardUseCase) Export(ctx context.Context, format ExportFormat, w io.Writer) error {
	switch format {
	case ExportCSV:
		raw, err := uc.api.ExportCSV(ctx)
		if err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
		if _, err := w.Write(raw); err != nil {
			return fmt.Errorf("write csv export: %w", err)
		}
		return nil
	case ExportJSON:
		export, err := uc.api.ExportJSON(ctx)
		if err != nil {
			return fmt.Errorf("export json: %w", err)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(export); err != nil {
			return fmt.Errorf("write json export: %w", err)
		}
		return nil
	case ExportXLSX:
		if uc.sheets == nil {
			return domain.WrapError(domain.ErrInvalidInput, "export xlsx", fmt.Errorf("spreadsheet writer not configured"))
		}
		export, err := uc.api.ExportJSON(ctx)
		if err != nil {
			return fmt.Errorf("export json for xlsx: %w", err)
		}
		if err := uc.sheets.WriteDocuments(w, *export); err != nil {
			return fmt.Errorf("write xlsx export: %w", err)
		}
		return nil
	default:
		return domain.WrapError(domain.ErrInvalidInput, "export", fmt.Errorf("unknown format %q", format))
	}
}
