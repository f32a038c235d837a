package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kirillkom/smart-document-manager/internal/core/usecase"
)

func newStatsCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the dashboard statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dash, err := state.app.Dashboard.Load(cmd.Context())
			if err != nil {
				return err
			}
			if state.jsonOutput {
				return state.printJSON(cmd.OutOrStdout(), dash)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Documents:          %d\n", dash.Stats.TotalDocuments)
			fmt.Fprintf(out, "Average confidence: %s\n", percent(dash.Stats.AverageConfidence))
			fmt.Fprintf(out, "Words extracted:    %d\n", dash.Stats.TotalWordsExtracted)
			fmt.Fprintf(out, "Last 7 days:        %d\n", dash.Stats.RecentDocuments)

			fmt.Fprintln(out, "\nBy category:")
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, slice := range dash.PieData() {
				fmt.Fprintf(tw, "  %s\t%d\n", slice.Name, slice.Value)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if bars := dash.BarData(); len(bars) > 0 {
				fmt.Fprintln(out, "\nClassification quality:")
				tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "  CATEGORY\tDOCUMENTS\tAVG CONFIDENCE")
				for _, bar := range bars {
					fmt.Fprintf(tw, "  %s\t%d\t%.1f%%\n", bar.Name, bar.Documents, bar.ConfidencePercent)
				}
				return tw.Flush()
			}
			return nil
		},
	}
}

func newTimelineCmd(state *cliState) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Show uploads per day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			timeline, err := state.app.Dashboard.Timeline(cmd.Context(), days)
			if err != nil {
				return err
			}
			if state.jsonOutput {
				return state.printJSON(cmd.OutOrStdout(), timeline)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Last %d days\n", timeline.PeriodDays)
			for _, point := range timeline.Timeline {
				fmt.Fprintf(out, "%s  %4d  %s\n", point.Date, point.Count, strings.Repeat("#", point.Count))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "number of days to include")
	return cmd
}

func newExportCmd(state *cliState) *cobra.Command {
	var format, outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every document as CSV, JSON or XLSX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			exportFormat, err := usecase.ParseExportFormat(format)
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = "documents_export." + string(exportFormat)
			}

			var w io.Writer = cmd.OutOrStdout()
			var file *os.File
			if outPath != "-" {
				file, err = os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				w = file
			}

			err = state.app.Dashboard.Export(cmd.Context(), exportFormat, w)
			if file != nil {
				if closeErr := file.Close(); err == nil && closeErr != nil {
					err = fmt.Errorf("close export file: %w", closeErr)
				}
				if err != nil {
					_ = os.Remove(outPath)
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", outPath)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", string(usecase.ExportCSV), "csv, json or xlsx")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file, - for stdout (default documents_export.<format>)")
	return cmd
}
