package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/wadigest/wadigest/internal/browser"
	"github.com/wadigest/wadigest/internal/config"
	"github.com/wadigest/wadigest/internal/dates"
	"github.com/wadigest/wadigest/internal/extract"
	"github.com/wadigest/wadigest/internal/logging"
	"github.com/wadigest/wadigest/internal/notify"
	"github.com/wadigest/wadigest/internal/orchestrator"
	"github.com/wadigest/wadigest/internal/runlog"
	"github.com/wadigest/wadigest/internal/server"
)

// digestRunner binds the orchestrator to the configured contact.
type digestRunner struct {
	orch    *orchestrator.Orchestrator
	contact string
}

func (r *digestRunner) RunDate(ctx context.Context, date time.Time) ([]extract.Message, error) {
	return r.orch.Run(ctx, orchestrator.SearchRequest{Date: date, Contact: r.contact})
}

func main() {
	once := flag.Bool("once", false, "run one digest now, deliver it to the webhook, and exit")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	cleanup, err := logging.Setup(logging.Config{
		Level:      cfg.LogLevel,
		Debug:      cfg.Debug,
		FilePath:   cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	})
	if err != nil {
		slog.Error("failed to setup logging", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.VerificationToken == "" {
		slog.Warn("SLACK_VERIFICATION_TOKEN not set; slash commands will be accepted without verification")
	}

	loc := cfg.Location()

	launcher := browser.NewChromeLauncher(cfg.SessionDir,
		browser.WithHeadless(cfg.Headless),
	)
	orch := orchestrator.New(launcher, orchestrator.Config{
		NavTimeout:          cfg.NavTimeout,
		QRTimeout:           cfg.QRTimeout,
		ChatListTimeout:     cfg.ChatListTimeout,
		SearchResultTimeout: cfg.SearchResultTimeout,
		MessagesTimeout:     cfg.MessagesTimeout,
		SearchSettle:        cfg.SearchSettle,
	})
	runner := &digestRunner{orch: orch, contact: cfg.ContactName}
	notifier := notify.New(cfg.SlackWebhookURL)

	history, err := runlog.NewHistory(cfg.RunHistorySize)
	if err != nil {
		slog.Error("failed to create run history", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		if err := runDigest(ctx, runner, notifier, history, cfg, loc); err != nil {
			os.Exit(1)
		}
		return
	}

	sched := cron.New(cron.WithLocation(loc))
	if _, err := sched.AddFunc(cfg.CronSpec, func() {
		runCtx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
		_ = runDigest(runCtx, runner, notifier, history, cfg, loc)
	}); err != nil {
		slog.Error("invalid CRON_SPEC", slog.String("spec", cfg.CronSpec), slog.String("error", err.Error()))
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()
	slog.Info("scheduled digest configured",
		slog.String("spec", cfg.CronSpec),
		slog.String("timezone", cfg.Timezone),
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.New(cfg, runner, notifier, history),
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("listening", slog.String("port", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// runDigest executes one scheduled-style run for today and delivers the
// digest, or the error notice, to the fixed webhook. Delivery failures are
// logged and swallowed; there is no separate alerting channel.
func runDigest(ctx context.Context, runner server.Runner, notifier *notify.Notifier, history *runlog.History, cfg *config.Config, loc *time.Location) error {
	date := dates.Normalize("", time.Now(), loc)
	slog.Info("starting digest run", slog.String("date", dates.SeparatorLabel(date)))

	start := time.Now()
	msgs, err := runner.RunDate(ctx, date)

	rec := runlog.Record{
		At:         start,
		Trigger:    "cron",
		Date:       dates.SeparatorLabel(date),
		DurationMS: time.Since(start).Milliseconds(),
	}

	var text string
	if err != nil {
		rec.Error = err.Error()
		text = notify.ErrorNotice(err)
	} else {
		rec.Count = len(msgs)
		text = notify.Digest(cfg.ContactName, dates.HumanLabel(date), msgs)
	}
	history.Add(rec)

	// The run context may be the reason the run failed; the webhook post
	// gets its own.
	postCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if postErr := notifier.Post(postCtx, text); postErr != nil {
		slog.Warn("webhook delivery failed", slog.String("error", postErr.Error()))
	}
	return err
}
