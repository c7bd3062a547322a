package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"

	"github.com/bdougie/framematch/internal/analyzer"
	"github.com/bdougie/framematch/internal/config"
	"github.com/bdougie/framematch/internal/extractor"
	"github.com/bdougie/framematch/internal/histogram"
	"github.com/bdougie/framematch/internal/metrics"
	"github.com/bdougie/framematch/internal/models"
	"github.com/bdougie/framematch/internal/publisher"
	"github.com/bdougie/framematch/internal/reference"
	"github.com/bdougie/framematch/internal/storage"
)

func main() {
	cmd, err := newRootCommand()
	if err == nil {
		err = cmd.Execute()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCommand() (*cobra.Command, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	root := &cobra.Command{
		Use:           "framematch <video-url>",
		Short:         "Extract frames matching a color histogram from a video",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runScan(ctx, cfg, args[0])
		},
	}

	flags := root.Flags()
	flags.StringVarP(&cfg.ExamplesDir, "examples", "e", cfg.ExamplesDir, "Path to the directory of images")
	flags.StringVarP(&cfg.OutputDir, "output", "o", cfg.OutputDir, "Path to the directory of output images")
	flags.StringVarP(&cfg.Method, "method", "m", cfg.Method,
		"Histogram comparison method ("+strings.Join(histogram.MethodNames(), ", ")+")")
	flags.Float64VarP(&cfg.Cutoff, "cutoff", "c", cfg.Cutoff, "Histogram comparison cutoff")
	flags.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "Output image format (png, bmp, tiff)")
	flags.IntVar(&cfg.Width, "width", cfg.Width, "Decoded frame width")
	flags.IntVar(&cfg.Height, "height", cfg.Height, "Decoded frame height")
	flags.IntVar(&cfg.ConfirmFrames, "confirm", cfg.ConfirmFrames, "Consecutive matching frames before a match is saved")
	flags.IntVar(&cfg.CooldownFrames, "cooldown", cfg.CooldownFrames, "Frames to wait after a saved match")
	flags.Int64Var(&cfg.SampleEvery, "sample-every", cfg.SampleEvery, "Save every Nth non-matching frame (0 disables)")
	flags.StringVar(&cfg.FFmpegBinary, "ffmpeg", cfg.FFmpegBinary, "ffmpeg binary")
	flags.BoolVar(&cfg.Describe, "describe", cfg.Describe, "Describe saved matches with a local Ollama vision model")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on this address")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL URL for the event store")

	root.AddCommand(newSimilarCommand(cfg))
	return root, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	), nil
}

func runScan(ctx context.Context, cfg *config.Config, videoURL string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	method, err := histogram.ParseMethod(cfg.Method)
	if err != nil {
		return err
	}

	// References must load before the decoder is started
	refs, err := reference.Load(ctx, cfg.ExamplesDir, logger)
	if err != nil {
		return err
	}

	m := metrics.New()
	m.References.Set(float64(refs.Len()))
	if cfg.MetricsAddr != "" {
		srv := metrics.StartServer(cfg.MetricsAddr, m, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	frames, err := storage.NewImageWriter(cfg.OutputDir, cfg.OutputFormat)
	if err != nil {
		return err
	}

	run := models.RunInfo{ID: uuid.New(), Source: videoURL, Method: method.String(), Cutoff: cfg.Cutoff}
	logger = logger.With("run", run.ID.String())

	consumers, closeConsumers, err := openConsumers(ctx, cfg, run, logger)
	if err != nil {
		return err
	}
	defer closeConsumers()

	var describer analyzer.Describer
	if cfg.Describe {
		d, err := analyzer.NewVisionDescriber(ctx, analyzer.AgentConfig{
			BaseURL: cfg.OllamaURL,
			Port:    cfg.OllamaPort,
			Model:   cfg.OllamaModel,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize vision agent: %w", err)
		}
		describer = d
	}

	classifier, err := analyzer.NewClassifier(refs, method, cfg.Cutoff)
	if err != nil {
		return err
	}
	processor := analyzer.NewProcessor(classifier, frames, storage.NewMulti(m, consumers...), describer, m, logger,
		analyzer.ProcessorConfig{
			RunID:          run.ID,
			ConfirmFrames:  cfg.ConfirmFrames,
			CooldownFrames: cfg.CooldownFrames,
			SampleEvery:    cfg.SampleEvery,
		})

	decoder, err := extractor.Start(ctx, videoURL, extractor.Options{
		Binary: cfg.FFmpegBinary,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, logger)
	if err != nil {
		return err
	}

	logger.Info("scanning",
		"source", videoURL,
		"method", method.String(),
		"cutoff", cfg.Cutoff,
		"references", refs.Len(),
	)
	summary, runErr := processor.Run(ctx, decoder)
	if err := decoder.Close(); err != nil {
		logger.Warn("ffmpeg wait failed", "error", err)
	}

	if ctx.Err() != nil {
		logger.Warn("scan interrupted", "frames", summary.Frames)
		return nil
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	logger.Info("scan complete",
		"frames", summary.Frames,
		"matches", summary.Matches,
		"samples", summary.Samples,
		"output", cfg.OutputDir,
	)
	return nil
}

// openConsumers builds the event consumers enabled by cfg. The returned
// function releases their connections.
func openConsumers(ctx context.Context, cfg *config.Config, run models.RunInfo, logger *slog.Logger) ([]storage.Named, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) ([]storage.Named, func(), error) {
		closeAll()
		return nil, func() {}, err
	}

	consumers := []storage.Named{{Name: "log", Storage: storage.NewEventLog(cfg.OutputDir)}}

	if cfg.DatabaseURL != "" {
		if cfg.InitSchema {
			if err := storage.InitSchema(ctx, cfg.DatabaseURL); err != nil {
				return fail(err)
			}
		}
		store, err := storage.NewPostgresStorage(ctx, cfg.DatabaseURL, run)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, store.Close)
		consumers = append(consumers, storage.Named{Name: "postgres", Storage: store})
		logger.Info("recording events in postgres")
	}

	if cfg.MinIOEndpoint != "" {
		objects, err := storage.NewObjectStorage(storage.ObjectConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
			Bucket:    cfg.MinIOBucket,
		}, run)
		if err != nil {
			return fail(err)
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			return fail(err)
		}
		consumers = append(consumers, storage.Named{Name: "minio", Storage: objects})
		logger.Info("mirroring frames to object storage", "bucket", cfg.MinIOBucket)
	}

	if cfg.RabbitMQURL != "" {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return fail(fmt.Errorf("connect to rabbitmq: %w", err))
		}
		closers = append(closers, func() { conn.Close() })
		pub, err := publisher.NewEventPublisher(conn, cfg.RabbitMQExchange)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { pub.Close() })
		consumers = append(consumers, storage.Named{Name: "rabbitmq", Storage: pub})
		logger.Info("publishing events", "exchange", cfg.RabbitMQExchange)
	}

	return consumers, closeAll, nil
}

func newSimilarCommand(cfg *config.Config) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "similar <image.png>",
		Short: "List stored match events whose histogram is closest to an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimilar(cmd.Context(), cfg, args[0], limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Number of events to list")
	return cmd
}

func runSimilar(ctx context.Context, cfg *config.Config, imagePath string, limit int) error {
	if cfg.DatabaseURL == "" {
		return errors.New("a database URL is required (--database-url or DATABASE_URL)")
	}

	entry, err := reference.LoadFile(imagePath)
	if err != nil {
		return err
	}

	store, err := storage.NewPostgresStorage(ctx, cfg.DatabaseURL, models.RunInfo{})
	if err != nil {
		return err
	}
	defer store.Close()

	results, err := store.SearchSimilarEvents(ctx, entry.Descriptor, limit)
	if err != nil {
		return err
	}

	fmt.Println("Search Results:")
	for _, r := range results {
		fmt.Printf("Run: %s, Match: %d, Frame: %d, Path: %s, Distance: %f\n",
			r.RunID, r.Index, r.Frame, r.Path, r.Distance)
	}
	return nil
}
