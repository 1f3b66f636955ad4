package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/mail-gateway/internal/app"
	"github.com/jmehdipour/mail-gateway/internal/attachment"
	"github.com/jmehdipour/mail-gateway/internal/config"
	apihttp "github.com/jmehdipour/mail-gateway/internal/http"
	"github.com/jmehdipour/mail-gateway/internal/logger"
	"github.com/jmehdipour/mail-gateway/internal/mailer"
	"github.com/jmehdipour/mail-gateway/internal/metrics"
	"github.com/jmehdipour/mail-gateway/internal/repository"
	"github.com/jmehdipour/mail-gateway/internal/status"
	"github.com/jmehdipour/mail-gateway/internal/templates"
	"github.com/jmehdipour/mail-gateway/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var senderTiers []string

var senderCmd = &cobra.Command{
	Use:   "sender",
	Short: "Consume the priority queues and deliver emails over SMTP",
	RunE:  runSender,
}

func init() {
	senderCmd.Flags().StringSliceVar(&senderTiers, "tiers", nil, "tiers to consume, highest first (default from config)")
}

func runSender(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("tiers") {
		cfg.Worker.Tiers = senderTiers
	}
	if opsAddr != "" {
		cfg.HTTP.Addr = opsAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	tiers, err := app.Tiers(cfg.Worker.Tiers)
	if err != nil {
		return err
	}

	lg, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) stores
	dbx, err := app.OpenDatabase(cfg)
	if err != nil {
		return err
	}
	defer dbx.Close()

	ch, err := app.OpenClickHouse(cfg)
	if err != nil {
		return err
	}
	var (
		events     repository.DeliveryEventsRepository
		eventsSink status.EventSink
	)
	if ch != nil {
		defer ch.Close()
		events = repository.NewDeliveryEventsRepository(ch)
		eventsSink = events
	}

	// 3) repositories
	emailsRepo := repository.NewEmailQueueRepository(dbx)
	attachmentsRepo := repository.NewAttachmentsRepository(dbx)

	// 4) delivery pipeline
	fs := afero.NewOsFs()
	delivery := worker.NewDelivery(
		attachment.NewResolver(attachmentsRepo, fs, lg),
		templates.NewRenderer(fs, cfg.Templates.UserDir, cfg.Templates.DefaultDir, cfg.Templates.Extension),
		mailer.NewSMTPSender(app.MailerConfig(cfg), fs, lg),
		status.NewRecorder(emailsRepo, eventsSink, lg),
		cfg.Worker.MaxRetries,
		cfg.Worker.RetryDelay(),
		lg,
	)

	// 5) broker
	dial, err := app.Dialer(cfg, tiers, lg)
	if err != nil {
		return err
	}
	runner := worker.NewRunner(dial, delivery, cfg.Broker.ReconnectMin, cfg.Broker.ReconnectMax, lg)

	// 6) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 7) ops endpoint
	srv := apihttp.NewServer(apihttp.Deps{
		Emails:   emailsRepo,
		Events:   events,
		Gatherer: prometheus.DefaultGatherer,
		Ready:    dbx.PingContext,
		APIKey:   cfg.HTTP.APIKey,
	}, lg)
	go func() {
		if err := srv.Start(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("ops server stopped", zap.Error(err))
		}
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	lg.Info("sender started",
		zap.String("broker", cfg.Broker.Driver),
		zap.Any("tiers", tiers),
		zap.Int("max_retries", cfg.Worker.MaxRetries),
		zap.Duration("retry_delay", cfg.Worker.RetryDelay()),
	)

	return runner.Run(ctx)
}
