package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/quailsoft/transq/internal/config"
	"github.com/quailsoft/transq/internal/engine"
	"github.com/quailsoft/transq/internal/history"
	"github.com/quailsoft/transq/internal/httpapi"
	"github.com/quailsoft/transq/internal/llm"
	"github.com/quailsoft/transq/internal/prompt"
	"github.com/quailsoft/transq/internal/ratelimit"
	"github.com/quailsoft/transq/internal/store/rabbitmq"
	"github.com/quailsoft/transq/internal/store/redisstore"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "transqd",
		Short: "Translation request orchestration daemon",
		Long: `transqd queues, deduplicates, rate-limits and caches translation
requests against an OpenAI-compatible chat-completion endpoint, exposing
an HTTP API with an SSE event stream.`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("transqd version %s\n", version)
			cmd.Printf("  commit: %s\n", commit)
			cmd.Printf("  built:  %s\n", date)
		},
	}
}

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestration engine and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	return cmd
}

func serve(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(gormsqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		return err
	}
	if err := history.Migrate(db); err != nil {
		return err
	}
	repo := history.NewRepo(db)

	presets := prompt.NewRegistry()
	for _, p := range cfg.Presets {
		presets.Register(p.Name, prompt.Preset{Name: p.Name, System: p.System})
	}

	limiter := ratelimit.New(cfg.RequestsPerMinute, cfg.RequestsPerDay)
	client := llm.NewClient(cfg.Endpoint, cfg.APIKey, cfg.MaxRetries,
		time.Duration(cfg.TimeoutSeconds)*time.Second)

	var shared engine.SharedCache
	if cfg.RedisAddr != "" {
		rds, err := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rds.Close()
		shared = rds
		log.Printf("redis cache tier enabled addr=%s", cfg.RedisAddr)
	}

	eng := engine.New(client, limiter, presets, shared, engine.Config{
		Model:          cfg.Model,
		Temperature:    cfg.Temperature,
		MaxChunkRunes:  cfg.MaxChunkRunes,
		MaxInputTokens: cfg.MaxInputTokens,
		CacheTTL:       time.Duration(cfg.CacheTTLSeconds) * time.Second,
	})

	var publisher *rabbitmq.Publisher
	if cfg.RabbitURL != "" {
		publisher, err = rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			return err
		}
		defer publisher.Close()
		log.Printf("event publishing enabled queue=%s", cfg.RabbitQueue)
	}

	hub := engine.NewHub()
	go dispatchEvents(ctx, eng, hub, repo, publisher)
	go eng.Run(ctx)

	router := httpapi.NewRouter(cfg, eng, repo, hub, presets)
	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("http api listening addr=%s", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	log.Printf("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// dispatchEvents fans the engine's single event stream out to the SSE
// hub, the history store, and the optional message queue.
func dispatchEvents(ctx context.Context, eng *engine.Engine, hub *engine.Hub, repo *history.Repo, publisher *rabbitmq.Publisher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-eng.Events():
			hub.Broadcast(ev)
			if err := repo.Record(ctx, ev); err != nil {
				log.Printf("history record failed request=%s err=%v", ev.RequestID, err)
			}
			if publisher != nil {
				if err := publisher.PublishEvent(ctx, ev); err != nil {
					log.Printf("event publish failed request=%s err=%v", ev.RequestID, err)
				}
			}
		}
	}
}
