// Package browser is the capability boundary around headless-browser
// automation. The rest of the system sequences the Page interface; only this
// package knows it is chromedp underneath.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"
)

// ErrWaitTimeout reports that a bounded wait elapsed before the target
// element became visible. Callers translate it into their own error kinds.
var ErrWaitTimeout = errors.New("browser: wait timed out")

// Page exposes the capability set the orchestrator sequences. Every blocking
// call is bounded either by the passed context or an explicit timeout.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	SendKeys(ctx context.Context, selector, text string) error
	HTML(ctx context.Context, selector string, timeout time.Duration) (string, error)
}

// Launcher starts a browser session and returns one page within it plus a
// release function that tears the whole session down. The release function
// is safe to call exactly once.
type Launcher interface {
	Launch(ctx context.Context) (Page, func(), error)
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"

// ChromeLauncher launches Chrome bound to a user-data directory so that the
// messaging client's login state persists across runs.
type ChromeLauncher struct {
	sessionDir string
	headless   bool
	userAgent  string
	execPath   string
}

// Option is a functional option for configuring the ChromeLauncher.
type Option func(*ChromeLauncher)

// WithHeadless controls whether Chrome runs without a visible window.
// Operators run headful once to scan the login QR.
func WithHeadless(headless bool) Option {
	return func(l *ChromeLauncher) {
		l.headless = headless
	}
}

// WithUserAgent overrides the user agent presented to the messaging client.
func WithUserAgent(ua string) Option {
	return func(l *ChromeLauncher) {
		l.userAgent = ua
	}
}

// WithExecPath points at a specific Chrome binary instead of the one found
// on PATH.
func WithExecPath(path string) Option {
	return func(l *ChromeLauncher) {
		l.execPath = path
	}
}

// NewChromeLauncher creates a launcher bound to the given session-storage
// directory.
func NewChromeLauncher(sessionDir string, opts ...Option) *ChromeLauncher {
	l := &ChromeLauncher{
		sessionDir: sessionDir,
		headless:   true,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch starts Chrome and returns a page bound to it. The session-storage
// directory is created if absent. The returned release function closes the
// page and the browser process.
func (l *ChromeLauncher) Launch(ctx context.Context) (Page, func(), error) {
	if err := os.MkdirAll(l.sessionDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating session dir: %w", err)
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{},
		chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.UserDataDir(l.sessionDir),
		chromedp.UserAgent(l.userAgent),
		chromedp.Flag("headless", l.headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if l.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	pageCtx, cancelPage := chromedp.NewContext(allocCtx)

	release := func() {
		cancelPage()
		cancelAlloc()
	}

	// Start the browser process eagerly so launch failures surface here
	// rather than on the first navigation.
	if err := chromedp.Run(pageCtx); err != nil {
		release()
		return nil, nil, err
	}

	return &chromePage{ctx: pageCtx}, release, nil
}

type chromePage struct {
	ctx context.Context
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, 0, chromedp.Navigate(url))
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	err := p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	return translateWait(ctx, err)
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, 0, chromedp.Click(selector, chromedp.ByQuery))
}

func (p *chromePage) SendKeys(ctx context.Context, selector, text string) error {
	return p.run(ctx, 0, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

func (p *chromePage) HTML(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	var out string
	err := p.run(ctx, timeout, chromedp.OuterHTML(selector, &out, chromedp.ByQuery))
	if err = translateWait(ctx, err); err != nil {
		return "", err
	}
	return out, nil
}

// translateWait maps a per-call timeout expiry to ErrWaitTimeout. The
// caller's own context expiring is not a wait timeout — an element that was
// never probed to its full bound must not read as "absent" — so that expiry
// passes through untranslated.
func translateWait(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return ErrWaitTimeout
	}
	return err
}

// run executes actions on the page context, honoring the caller's context
// and an optional per-call timeout. chromedp requires the run context to
// descend from the one NewContext returned, so the caller's context is
// bridged in via AfterFunc instead of being passed down directly.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
