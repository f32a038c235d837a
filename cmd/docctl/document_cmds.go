package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/core/usecase"
	"github.com/kirillkom/smart-document-manager/internal/infrastructure/docapi"
)

const textPreviewRunes = 300

func newUploadCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a PDF, PNG or JPG, then run OCR and classification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := readUploadFile(args[0])
			if err != nil {
				return err
			}
			progress := cmd.ErrOrStderr()
			workflow := state.app.UploadWorkflow(func(step usecase.UploadStep) {
				if step != usecase.StepIdle {
					fmt.Fprintf(progress, "[%d/4] %s\n", int(step), step)
				}
			})
			result, err := workflow.Run(cmd.Context(), file)
			if err != nil {
				return err
			}
			if state.jsonOutput {
				return state.printJSON(cmd.OutOrStdout(), result)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Document:   #%d %s\n", result.DocumentID, result.Filename)
			fmt.Fprintf(out, "Category:   %s (%s)\n", result.Category, percent(result.Confidence))
			fmt.Fprintf(out, "Words:      %d\n", result.WordCount)
			fmt.Fprintf(out, "Language:   %s\n", result.Language)
			fmt.Fprintf(out, "OCR time:   %.2fs\n", result.ProcessingTime)
			printPredictions(out, result.AllPredictions)
			if text := preview(result.ExtractedText); text != "" {
				fmt.Fprintf(out, "\n%s\n", text)
			}
			return nil
		},
	}
}

func newAnalyzeCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <file>",
		Short: "Classify a file without storing it (guest mode)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := readUploadFile(args[0])
			if err != nil {
				return err
			}
			result, err := state.app.UploadWorkflow(nil).AnalyzeGuest(cmd.Context(), file)
			if err != nil {
				return err
			}
			if state.jsonOutput {
				return state.printJSON(cmd.OutOrStdout(), result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File:        %s\n", result.Filename)
			fmt.Fprintf(out, "Category:    %s (%.1f%%)\n", result.Category, result.Confidence)
			fmt.Fprintf(out, "Words:       %d\n", result.WordCount)
			fmt.Fprintf(out, "Text length: %d\n", result.TextLength)
			if result.Message != "" {
				fmt.Fprintln(out, result.Message)
			}
			return nil
		},
	}
}

func newListCmd(state *cliState) *cobra.Command {
	var filter usecase.DocumentFilter
	var facets bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, err := state.app.Documents.Load(cmd.Context())
			if err != nil {
				return err
			}
			if facets {
				f := usecase.Facets(docs)
				if state.jsonOutput {
					return state.printJSON(cmd.OutOrStdout(), f)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Categories: %s\n", strings.Join(f.Categories, ", "))
				fmt.Fprintf(cmd.OutOrStdout(), "Types:      %s\n", strings.Join(f.FileTypes, ", "))
				return nil
			}

			filtered := usecase.Filter(docs, filter)
			if state.jsonOutput {
				return state.printJSON(cmd.OutOrStdout(), filtered)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFILENAME\tTYPE\tCATEGORY\tCONFIDENCE\tCREATED")
			for _, doc := range filtered {
				category := doc.Category
				if category == "" {
					category = "-"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
					doc.ID,
					doc.Filename,
					usecase.IconFor(doc.FileType),
					category,
					confidenceCell(doc.Confidence),
					doc.CreatedAt.Format("2006-01-02 15:04"),
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d documents\n", len(filtered), len(docs))
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.Category, "category", usecase.FilterAll, "only documents of this category")
	cmd.Flags().StringVar(&filter.FileType, "type", usecase.FilterAll, "only documents of this file type (PDF, IMAGE)")
	cmd.Flags().StringVar(&filter.Search, "search", "", "case-insensitive filename substring")
	cmd.Flags().BoolVar(&facets, "facets", false, "print the available filter values instead")
	return cmd
}

func newShowCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a document with its extracted text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			doc, err := state.app.Documents.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if state.jsonOutput {
				return state.printJSON(cmd.OutOrStdout(), doc)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Document:   #%d %s\n", doc.ID, doc.Filename)
			fmt.Fprintf(out, "Type:       %s\n", doc.FileType)
			fmt.Fprintf(out, "Category:   %s\n", valueOr(doc.Category, "-"))
			fmt.Fprintf(out, "Confidence: %s\n", confidenceCell(doc.Confidence))
			fmt.Fprintf(out, "Created:    %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
			if usecase.HasImagePreview(*doc) {
				fmt.Fprintf(out, "Image:      %s\n", state.app.Documents.ImageURL(doc.ID))
			}
			if doc.ExtractedText != "" {
				fmt.Fprintf(out, "\n%s\n", doc.ExtractedText)
			}
			return nil
		},
	}
}

func newDeleteCmd(state *cliState) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}
			if !yes && !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("Delete document #%d?", id)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
				return nil
			}
			remaining, err := state.app.Documents.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted document #%d, %d remaining\n", id, len(remaining))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newClassifyBatchCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "classify-batch <id>...",
		Short: "Classify several stored documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseDocumentID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			batch, err := state.app.API.ClassifyBatch(cmd.Context(), ids)
			if err != nil {
				return err
			}
			if state.jsonOutput {
				return state.printJSON(cmd.OutOrStdout(), batch)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tRESULT\tCATEGORY\tCONFIDENCE")
			for _, item := range batch.Results {
				if item.Success {
					fmt.Fprintf(tw, "%d\tok\t%s\t%s\n", item.DocumentID, item.Category, percent(item.Confidence))
				} else {
					fmt.Fprintf(tw, "%d\tfailed\t%s\t-\n", item.DocumentID, valueOr(item.Error, "-"))
				}
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d classified, %d failed\n", batch.Successful, batch.Total, batch.Failed)
			return nil
		},
	}
}

func newCategoriesCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the categories the classifier knows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := state.app.API.Categories(cmd.Context())
			if err != nil {
				return err
			}
			if state.jsonOutput {
				return state.printJSON(cmd.OutOrStdout(), catalog)
			}
			for _, name := range catalog.Categories {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newFeaturesCmd(state *cliState) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "features <category>",
		Short: "Show the words that weigh most in a category's classification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if top <= 0 {
				return domain.WrapError(domain.ErrInvalidInput, "features", errors.New("--top must be positive"))
			}
			importance, err := state.app.API.FeatureImportance(cmd.Context(), args[0], top)
			if err != nil {
				return err
			}
			if state.jsonOutput {
				return state.printJSON(cmd.OutOrStdout(), importance)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Top features for %s:\n", importance.Category)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for i, f := range importance.Ranked() {
				fmt.Fprintf(tw, "%d.\t%s\t%.4f\n", i+1, f.Word, f.Weight)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&top, "top", docapi.DefaultFeatureCount, "number of features to show")
	return cmd
}

func newLanguagesCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the OCR languages supported by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			langs, err := state.app.API.SupportedLanguages(cmd.Context())
			if err != nil {
				return err
			}
			if state.jsonOutput {
				return state.printJSON(cmd.OutOrStdout(), langs)
			}
			for _, lang := range langs.Languages {
				marker := ""
				if lang == langs.Default {
					marker = " (default)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", lang, marker)
			}
			return nil
		},
	}
}

func readUploadFile(path string) (domain.UploadFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.UploadFile{}, domain.WrapError(domain.ErrInvalidInput, "read upload file", err)
	}
	return domain.UploadFile{
		Name: filepath.Base(path),
		Size: int64(len(data)),
		Data: data,
	}, nil
}

func printPredictions(out io.Writer, predictions map[string]float64) {
	if len(predictions) == 0 {
		return
	}
	names := make([]string, 0, len(predictions))
	for name := range predictions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return predictions[names[i]] > predictions[names[j]] })
	fmt.Fprintln(out, "Predictions:")
	for _, name := range names {
		fmt.Fprintf(out, "  %-20s %s\n", name, percent(predictions[name]))
	}
}

func confidenceCell(confidence float64) string {
	if usecase.BandFor(confidence) == usecase.ConfidenceNone {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", percent(confidence), usecase.BandFor(confidence))
}

func preview(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= textPreviewRunes {
		return text
	}
	return string([]rune(text)[:textPreviewRunes]) + "..."
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
