package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/smart-document-manager/internal/bootstrap"
	"github.com/kirillkom/smart-document-manager/internal/config"
	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/observability/logging"
)

// resilienceAnnotation names the retry and breaker preset a command runs with
// when API_RESILIENCE_PROFILE is unset.
const resilienceAnnotation = "docctl/resilience"

// cliState carries the application shared by every subcommand of one run.
type cliState struct {
	apiURL     string
	logLevel   string
	jsonOutput bool

	// logOut overrides the log destination; stderr when nil.
	logOut io.Writer

	cfg config.Config
	app *bootstrap.App
}

func newRootCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "docctl",
		Short:         "Upload, analyze and browse documents on a smart document manager server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return state.open(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&state.apiURL, "api-url", "", "API base URL (overrides API_BASE_URL)")
	cmd.PersistentFlags().StringVar(&state.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	cmd.PersistentFlags().BoolVar(&state.jsonOutput, "json", false, "print results as JSON")

	cmd.AddCommand(
		newLoginCmd(state),
		newRegisterCmd(state),
		newLogoutCmd(state),
		newWhoamiCmd(state),
		newUploadCmd(state),
		newAnalyzeCmd(state),
		newListCmd(state),
		newShowCmd(state),
		newDeleteCmd(state),
		newClassifyBatchCmd(state),
		newCategoriesCmd(state),
		newFeaturesCmd(state),
		newLanguagesCmd(state),
		newStatsCmd(state),
		newTimelineCmd(state),
		newExportCmd(state),
		newImageCmd(state),
		newPreviewCmd(state),
	)
	return cmd
}

func (s *cliState) open(cmd *cobra.Command) error {
	if s.app != nil {
		return nil
	}
	cfg := config.Load()
	if s.apiURL != "" {
		cfg.APIBaseURL = strings.TrimRight(s.apiURL, "/")
	}
	if s.logLevel != "" {
		cfg.LogLevel = s.logLevel
	}
	if cfg.ResilienceProfile == "" {
		cfg.ResilienceProfile = config.ResilienceCommand
		if profile := cmd.Annotations[resilienceAnnotation]; profile != "" {
			cfg.ResilienceProfile = profile
		}
	}

	if s.logOut != nil {
		slog.SetDefault(logging.NewJSONLoggerTo(s.logOut, "docctl", cfg.LogLevel))
	} else {
		slog.SetDefault(logging.NewJSONLogger("docctl", cfg.LogLevel))
	}

	app, err := bootstrap.New(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	s.cfg = cfg
	s.app = app
	return nil
}

func (s *cliState) close() {
	if s.app != nil {
		s.app.Close()
		s.app = nil
	}
}

func (s *cliState) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDocumentID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse document id", fmt.Errorf("invalid document id %q", raw))
	}
	return id, nil
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "o", "oui":
		return true
	default:
		return false
	}
}

func describeError(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated), errors.Is(err, domain.ErrUnauthorized):
		return err.Error() + " (run `docctl login`)"
	case errors.Is(err, domain.ErrTemporary):
		return err.Error() + " (server unavailable, try again later)"
	default:
		return err.Error()
	}
}

func percent(confidence float64) string {
	return strconv.FormatFloat(confidence*100, 'f', 1, 64) + "%"
}
