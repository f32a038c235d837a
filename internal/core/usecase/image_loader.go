package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
	"github.com/kirillkom/smart-document-manager/internal/core/ports"
)

var ErrImageLoaderClosed = errors.New("image loader closed")

var _ ports.ImageViewSource = (*ImageLoader)(nil)

// ImageLoadObserver receives loader outcomes for metrics.
type ImageLoadObserver interface {
	ObserveImageLoad(outcome string, duration time.Duration)
	ObserveHandleReleased()
	ObserveStaleResult()
}

type noopImageLoadObserver struct{}

func (noopImageLoadObserver) ObserveImageLoad(string, time.Duration) {}
func (noopImageLoadObserver) ObserveHandleReleased()                 {}
func (noopImageLoadObserver) ObserveStaleResult()                    {}

// ImageLoaderOptions configures one loader instance.
//
// OnChange is called synchronously for every committed state, in commit
// order. It must not call SetURL. OnError is called once per committed
// failure, after the Failed state has been rendered.
type ImageLoaderOptions struct {
	AltText    string
	StyleClass string
	OnChange   func(domain.ImageView)
	OnError    func(error)
	Observer   ImageLoadObserver
	// Timeout bounds a single fetch+materialize attempt. Zero means no bound.
	Timeout time.Duration
}

// ImageLoader fetches a bearer-protected image and exposes it as a resource
// handle. One instance holds at most one live handle at any time.
type ImageLoader struct {
	creds   ports.CredentialSource
	fetcher ports.ResourceFetcher
	handles ports.HandleTable
	opts    ImageLoaderOptions

	rootCtx    context.Context
	rootCancel context.CancelFunc

	// notifyMu orders OnChange deliveries; always taken before mu.
	notifyMu sync.Mutex

	mu      sync.Mutex
	started bool
	closed  bool
	url     string
	gen     uint64
	state   domain.LoadState
	handle  *domain.ResourceHandle
	err     error
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewImageLoader(
	creds ports.CredentialSource,
	fetcher ports.ResourceFetcher,
	handles ports.HandleTable,
	opts ImageLoaderOptions,
) *ImageLoader {
	if opts.Observer == nil {
		opts.Observer = noopImageLoadObserver{}
	}
	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &ImageLoader{
		creds:      creds,
		fetcher:    fetcher,
		handles:    handles,
		opts:       opts,
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
		state:      domain.LoadStateLoading,
	}
}

// SetURL mounts the loader on url, or switches it to a new url. The Loading
// state is rendered before SetURL returns; the previous handle is released
// after that render and before the new fetch starts. Supplying the current
// url again is a no-op, so a failed load is retried only through a new url.
func (l *ImageLoader) SetURL(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return domain.WrapError(domain.ErrInvalidInput, "set image url", errors.New("url is required"))
	}

	l.notifyMu.Lock()

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.notifyMu.Unlock()
		return ErrImageLoaderClosed
	}
	if l.started && l.url == url {
		l.mu.Unlock()
		l.notifyMu.Unlock()
		return nil
	}

	prevCancel := l.cancel
	prevHandle := l.handle

	l.gen++
	gen := l.gen
	ctx, cancel := l.requestContext()
	done := make(chan struct{})

	l.started = true
	l.url = url
	l.state = domain.LoadStateLoading
	l.handle = nil
	l.err = nil
	l.cancel = cancel
	l.done = done
	view := l.viewLocked()
	l.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}
	l.emit(view)
	l.notifyMu.Unlock()

	_ = l.release(prevHandle)

	go l.load(ctx, cancel, gen, url, done)
	return nil
}

// View returns a snapshot of the current render state.
func (l *ImageLoader) View() domain.ImageView {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.viewLocked()
}

// Wait blocks until the request for the current url has finished, including
// its OnChange and OnError deliveries, the loader is closed, or ctx is done.
// A url change while waiting moves the wait to the new request.
func (l *ImageLoader) Wait(ctx context.Context) (domain.ImageView, error) {
	for {
		l.mu.Lock()
		if !l.started || l.closed {
			view := l.viewLocked()
			l.mu.Unlock()
			return view, nil
		}
		done := l.done
		l.mu.Unlock()

		select {
		case <-done:
			l.mu.Lock()
			if l.done == done || l.closed {
				view := l.viewLocked()
				l.mu.Unlock()
				return view, nil
			}
			l.mu.Unlock()
		case <-ctx.Done():
			return l.View(), ctx.Err()
		}
	}
}

// Close tears the loader down: in-flight work is cancelled and the held
// handle, if any, is released. Calling Close more than once is a no-op.
func (l *ImageLoader) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	handle := l.handle
	l.handle = nil
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	l.rootCancel()
	return l.release(handle)
}

func (l *ImageLoader) requestContext() (context.Context, context.CancelFunc) {
	if l.opts.Timeout > 0 {
		return context.WithTimeout(l.rootCtx, l.opts.Timeout)
	}
	return context.WithCancel(l.rootCtx)
}

func (l *ImageLoader) load(ctx context.Context, cancel context.CancelFunc, gen uint64, url string, done chan struct{}) {
	defer close(done)
	defer cancel()
	start := time.Now()

	token, err := l.creds.Token(ctx)
	if err != nil {
		l.fail(gen, start, domain.WrapError(domain.ErrNotAuthenticated, "read credential", err))
		return
	}

	res, err := l.fetcher.FetchResource(ctx, url, token)
	if err != nil {
		l.fail(gen, start, err)
		return
	}
	if !l.isCurrent(gen) {
		l.opts.Observer.ObserveStaleResult()
		return
	}

	handle, err := l.handles.Materialize(ctx, res)
	if err != nil {
		l.fail(gen, start, err)
		return
	}
	if !l.commitReady(gen, handle, start) {
		l.opts.Observer.ObserveStaleResult()
		_ = l.release(handle)
	}
}

func (l *ImageLoader) commitReady(gen uint64, handle *domain.ResourceHandle, start time.Time) bool {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()

	l.mu.Lock()
	if l.closed || gen != l.gen {
		l.mu.Unlock()
		return false
	}
	l.state = domain.LoadStateReady
	l.handle = handle
	l.err = nil
	view := l.viewLocked()
	l.mu.Unlock()

	l.opts.Observer.ObserveImageLoad("ready", time.Since(start))
	l.emit(view)
	return true
}

func (l *ImageLoader) fail(gen uint64, start time.Time, cause error) {
	err := fmt.Errorf("%w: %w", domain.ErrImageLoad, cause)

	l.notifyMu.Lock()
	l.mu.Lock()
	if l.closed || gen != l.gen {
		l.mu.Unlock()
		l.notifyMu.Unlock()
		l.opts.Observer.ObserveStaleResult()
		return
	}
	l.state = domain.LoadStateFailed
	l.err = err
	url := l.url
	view := l.viewLocked()
	l.mu.Unlock()

	l.opts.Observer.ObserveImageLoad("failed", time.Since(start))
	l.emit(view)
	l.notifyMu.Unlock()

	slog.Warn("image_load_failed", "url", url, "error", cause)
	if l.opts.OnError != nil {
		l.opts.OnError(err)
	}
}

func (l *ImageLoader) isCurrent(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed && gen == l.gen
}

func (l *ImageLoader) release(handle *domain.ResourceHandle) error {
	if handle == nil {
		return nil
	}
	l.opts.Observer.ObserveHandleReleased()
	if err := l.handles.Release(context.Background(), handle.ID); err != nil {
		slog.Warn("image_handle_release_failed", "handle_id", handle.ID, "error", err)
		return fmt.Errorf("release handle %s: %w", handle.ID, err)
	}
	return nil
}

func (l *ImageLoader) emit(view domain.ImageView) {
	if l.opts.OnChange != nil {
		l.opts.OnChange(view)
	}
}

func (l *ImageLoader) viewLocked() domain.ImageView {
	view := domain.ImageView{
		URL:        l.url,
		AltText:    l.opts.AltText,
		StyleClass: l.opts.StyleClass,
		State:      l.state,
		StateName:  l.state.String(),
		Err:        l.err,
	}
	if l.handle != nil {
		h := *l.handle
		view.Handle = &h
	}
	if l.err != nil {
		view.ErrMessage = l.err.Error()
	}
	return view
}
