// Package orchestrator drives one browser session through the fixed sequence
// open → select contact → extract messages → close, with the session released
// on every exit path.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/wadigest/wadigest/internal/browser"
	"github.com/wadigest/wadigest/internal/dates"
	"github.com/wadigest/wadigest/internal/extract"
	"github.com/wadigest/wadigest/internal/faults"
)

const entryURL = "https://web.whatsapp.com"

// Selectors for the client's top-level chrome. Like the extractor's, these
// track WhatsApp Web's DOM.
const (
	selQRCanvas     = `canvas[aria-label="Scan me!"]`
	selChatList     = `[data-testid="chat-list"]`
	selSearchInput  = `[data-testid="search-input"]`
	selMsgContainer = `[data-testid="msg-container"]`
	selConversation = `#main`
)

// State is the position of a run in the session state machine.
type State string

const (
	StateStarting          State = "starting"
	StateAwaitingLogin     State = "awaiting_login"
	StateReady             State = "ready"
	StateContactSelected   State = "contact_selected"
	StateMessagesExtracted State = "messages_extracted"
	StateFailed            State = "failed"
)

// SearchRequest identifies one extraction run. Immutable once constructed,
// never persisted.
type SearchRequest struct {
	Date    time.Time
	Contact string
}

// Config bounds every browser wait. No wait is unbounded.
type Config struct {
	NavTimeout          time.Duration
	QRTimeout           time.Duration
	ChatListTimeout     time.Duration
	SearchResultTimeout time.Duration
	MessagesTimeout     time.Duration
	SearchSettle        time.Duration
}

// Orchestrator runs search requests against a browser session. Stateless
// across runs; safe for concurrent use. Concurrent runs serialize at browser
// launch because the on-disk session-storage directory cannot back two live
// browsers at once.
type Orchestrator struct {
	launcher browser.Launcher
	cfg      Config
	launch   *semaphore.Weighted
}

// New creates an Orchestrator on top of a session launcher.
func New(launcher browser.Launcher, cfg Config) *Orchestrator {
	return &Orchestrator{
		launcher: launcher,
		cfg:      cfg,
		launch:   semaphore.NewWeighted(1),
	}
}

// Run executes one full search: open the session, locate the contact,
// extract the messages of the requested date. The session is closed exactly
// once on every path out of this function.
func (o *Orchestrator) Run(ctx context.Context, req SearchRequest) ([]extract.Message, error) {
	log := slog.With(
		slog.String("contact", req.Contact),
		slog.String("date", dates.SeparatorLabel(req.Date)),
	)

	if err := o.launch.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer o.launch.Release(1)

	state := StateStarting
	log.Info("opening session", slog.String("state", string(state)))

	page, release, err := o.open(ctx)
	if err != nil {
		if faults.Kind(err) == faults.KindLoginRequired {
			state = StateAwaitingLogin
		} else {
			state = StateFailed
		}
		log.Error("session open failed", slog.String("state", string(state)), slog.String("error", err.Error()))
		return nil, err
	}
	defer release()
	state = StateReady
	log.Debug("session ready", slog.String("state", string(state)))

	if err := o.selectContact(ctx, page, req.Contact); err != nil {
		state = StateFailed
		log.Error("contact selection failed", slog.String("state", string(state)), slog.String("error", err.Error()))
		return nil, err
	}
	state = StateContactSelected
	log.Debug("contact selected", slog.String("state", string(state)))

	messages, err := o.extractMessages(ctx, page, req.Date)
	if err != nil {
		state = StateFailed
		log.Error("extraction failed", slog.String("state", string(state)), slog.String("error", err.Error()))
		return nil, err
	}
	state = StateMessagesExtracted

	log.Info("run complete",
		slog.String("state", string(state)),
		slog.Int("messages", len(messages)),
	)
	return messages, nil
}

// open launches the browser, navigates to the client and waits for either
// the authenticated chat list or the login QR. A visible QR is terminal for
// this system: no automated login is ever attempted.
func (o *Orchestrator) open(ctx context.Context) (browser.Page, func(), error) {
	page, release, err := o.launcher.Launch(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("launching browser: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, o.cfg.NavTimeout)
	defer cancel()
	if err := page.Navigate(navCtx, entryURL); err != nil {
		release()
		return nil, nil, faults.Wrap(faults.KindLoadTimeout, "navigating to "+entryURL, err)
	}

	// The QR appearing means there is no stored session.
	err = page.WaitVisible(ctx, selQRCanvas, o.cfg.QRTimeout)
	if err == nil {
		release()
		return nil, nil, faults.New(faults.KindLoginRequired,
			"no stored session: run once with HEADLESS=false and scan the QR code")
	}
	if !errors.Is(err, browser.ErrWaitTimeout) {
		release()
		return nil, nil, fmt.Errorf("probing for login QR: %w", err)
	}

	if err := page.WaitVisible(ctx, selChatList, o.cfg.ChatListTimeout); err != nil {
		release()
		if errors.Is(err, browser.ErrWaitTimeout) {
			return nil, nil, faults.Wrap(faults.KindLoadTimeout, "chat list did not render", err)
		}
		return nil, nil, fmt.Errorf("waiting for chat list: %w", err)
	}

	return page, release, nil
}

// selectContact searches for name and opens the first result whose rendered
// title contains it. The substring match is case-sensitive; with several
// matches, the first rendered result wins.
func (o *Orchestrator) selectContact(ctx context.Context, page browser.Page, name string) error {
	if err := page.Click(ctx, selSearchInput); err != nil {
		return fmt.Errorf("focusing search box: %w", err)
	}
	if err := page.SendKeys(ctx, selSearchInput, name); err != nil {
		return fmt.Errorf("typing contact name: %w", err)
	}

	// Give the result list a moment to render.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(o.cfg.SearchSettle):
	}

	resultSel := fmt.Sprintf(`%s [title*=%q]`, selChatList, name)
	if err := page.WaitVisible(ctx, resultSel, o.cfg.SearchResultTimeout); err != nil {
		if errors.Is(err, browser.ErrWaitTimeout) {
			return faults.New(faults.KindContactNotFound, fmt.Sprintf("contact %q not found", name))
		}
		return fmt.Errorf("waiting for search results: %w", err)
	}
	if err := page.Click(ctx, resultSel); err != nil {
		return fmt.Errorf("opening conversation: %w", err)
	}
	return nil
}

// extractMessages snapshots the open conversation panel and delegates the
// scan to the extract package.
func (o *Orchestrator) extractMessages(ctx context.Context, page browser.Page, date time.Time) ([]extract.Message, error) {
	if err := page.WaitVisible(ctx, selMsgContainer, o.cfg.MessagesTimeout); err != nil {
		if errors.Is(err, browser.ErrWaitTimeout) {
			return nil, faults.Wrap(faults.KindExtractionTimeout, "messages did not render", err)
		}
		return nil, fmt.Errorf("waiting for messages: %w", err)
	}

	html, err := page.HTML(ctx, selConversation, o.cfg.MessagesTimeout)
	if err != nil {
		if errors.Is(err, browser.ErrWaitTimeout) {
			return nil, faults.Wrap(faults.KindExtractionTimeout, "snapshotting conversation", err)
		}
		return nil, fmt.Errorf("snapshotting conversation: %w", err)
	}

	return extract.Extract([]byte(html), dates.SeparatorLabel(date))
}
