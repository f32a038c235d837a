package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/kirillkom/smart-document-manager/internal/adapters/http"
	"github.com/kirillkom/smart-document-manager/internal/config"
	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/core/usecase"
	"github.com/kirillkom/smart-document-manager/internal/infrastructure/blobstore"
)

func newImageCmd(state *cliState) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "image <id>",
		Short: "Download the stored image of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDocumentID(args[0])
			if err != nil {
				return err
			}

			loader := state.app.NewImageLoader(usecase.ImageLoaderOptions{
				AltText: fmt.Sprintf("document %d", id),
			})
			defer func() {
				if err := loader.Close(); err != nil {
					slog.Warn("image_loader_close_failed", "error", err)
				}
			}()

			if err := loader.SetURL(state.app.API.DocumentImageURL(id)); err != nil {
				return err
			}
			view, err := loader.Wait(cmd.Context())
			if err != nil {
				return err
			}
			if view.State != domain.LoadStateReady || view.Handle == nil {
				if view.Err != nil {
					return view.Err
				}
				return domain.ErrImageLoad
			}

			if outPath == "" {
				outPath = fmt.Sprintf("document_%d%s", id, blobstore.Extension(view.Handle.ContentType))
			}
			if err := saveHandle(cmd.Context(), state, view.Handle.ID, outPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%dx%d, %d bytes)\n",
				outPath, view.Handle.Width, view.Handle.Height, view.Handle.Size)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default document_<id>.<ext>)")
	return cmd
}

func newPreviewCmd(state *cliState) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "preview <id>...",
		Short: "Serve document images on a local preview server",
		Long: "Serve document images on a local preview server. With several ids the " +
			"preview switches to the next document every --interval; /current always " +
			"shows the latest selection.",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{resilienceAnnotation: config.ResilienceServe},
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := make([]string, 0, len(args))
			for _, arg := range args {
				id, err := parseDocumentID(arg)
				if err != nil {
					return err
				}
				urls = append(urls, state.app.API.DocumentImageURL(id))
			}
			if interval <= 0 {
				return domain.WrapError(domain.ErrInvalidInput, "preview", errors.New("interval must be positive"))
			}
			return runPreview(cmd.Context(), state, cmd.OutOrStdout(), urls, interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "time spent on each document when several are given")
	return cmd
}

func runPreview(ctx context.Context, state *cliState, out io.Writer, urls []string, interval time.Duration) error {
	cfg := state.cfg
	loader := state.app.NewImageLoader(usecase.ImageLoaderOptions{
		AltText: "document preview",
		OnChange: func(view domain.ImageView) {
			slog.Info("preview_state", "url", view.URL, "state", view.StateName)
		},
	})

	router := httpadapter.NewPreviewRouter(loader, state.app.Handles, state.app.HTTPMetrics, httpadapter.PreviewOptions{
		Service:     "docctl-preview",
		MaxInFlight: cfg.PreviewMaxInFlight,
	})
	server := &http.Server{
		Addr:              cfg.PreviewAddr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		defer close(serveErr)
		slog.Info("preview_listening", "addr", cfg.PreviewAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("preview server: %w", err)
		}
	}()
	fmt.Fprintf(out, "Preview at %s/current (Ctrl+C to stop)\n", cfg.PreviewBaseURL)

	runErr := cycleImages(ctx, loader, urls, interval, serveErr)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("preview_shutdown_failed", "error", err)
	}
	if err := loader.Close(); err != nil {
		slog.Warn("image_loader_close_failed", "error", err)
	}
	slog.Info("preview_stopped", "live_handles", state.app.Handles.Live())
	return runErr
}

// cycleImages points the loader at each url in turn until ctx is done or the
// server fails. Each switch supersedes the previous load.
func cycleImages(ctx context.Context, loader *usecase.ImageLoader, urls []string, interval time.Duration, serveErr <-chan error) error {
	if err := loader.SetURL(urls[0]); err != nil {
		return err
	}

	var tick <-chan time.Time
	if len(urls) > 1 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	next := 1
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-serveErr:
			if ok {
				return err
			}
			return nil
		case <-tick:
			if err := loader.SetURL(urls[next%len(urls)]); err != nil {
				return err
			}
			next++
		}
	}
}

func saveHandle(ctx context.Context, state *cliState, handleID, path string) error {
	body, _, err := state.app.Handles.Open(ctx, handleID)
	if err != nil {
		return err
	}
	defer body.Close()

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create image file: %w", err)
	}
	if _, err := io.Copy(file, body); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write image file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close image file: %w", err)
	}
	return nil
}
