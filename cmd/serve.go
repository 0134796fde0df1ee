package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"capstone/llm"
	"capstone/platform"
	"capstone/router"
	"capstone/service"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var port string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and the scheduled sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port != "" {
			cfg.Port = port
		}
		return serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&port, "port", "", "listen port, overrides PORT")
}

func serve(ctx context.Context) error {
	platform.InitLogger(cfg.LogPath, cfg.LogLevel)
	gin.SetMode(cfg.GinMode)
	if cfg.AccessSecret == "" {
		return errors.New("ACCESS_SECRET must be set")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStore(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer s.Close()

	locker, closeLocker, err := openLocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	gateway, err := llm.New(cfg)
	if err != nil {
		return err
	}

	var mailer service.Mailer
	if cfg.SMTP.Enabled() {
		mailer = platform.NewMailer(cfg.SMTP)
	}

	tokens := service.NewTokenService(cfg.AccessSecret, cfg.TokenTTL)
	engine := router.New(router.Deps{
		CORSOrigin:     cfg.CORSOrigin,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Tokens:         tokens,
		Users:          service.NewUserService(s, tokens, mailer),
		Conversations:  service.NewConversationService(s),
		Chat:           service.NewChatService(s, gateway, locker, cfg.DefaultAPIKey, cfg.PersonalityFile),
		Keys:           service.NewKeyService(gateway),
	})

	scheduler := cron.New()
	if err := service.NewSweeper(s).Schedule(scheduler, cfg.SweepSchedule); err != nil {
		return errors.Wrapf(err, "invalid SWEEP_SCHEDULE %q", cfg.SweepSchedule)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Infof("Server started on :%s (storage=%s, llm=%s/%s)", cfg.Port, cfg.StorageBackend, cfg.LLMProvider, cfg.LLMModel)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		scheduler.Start()
		<-ctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		logger.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
