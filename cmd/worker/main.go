package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/EbrithilNogare/frameconv/internal/cli"
	"github.com/EbrithilNogare/frameconv/internal/infra/archive"
	"github.com/EbrithilNogare/frameconv/internal/infra/config"
	"github.com/EbrithilNogare/frameconv/internal/infra/email"
	"github.com/EbrithilNogare/frameconv/internal/infra/ffmpeg"
	miniostorage "github.com/EbrithilNogare/frameconv/internal/infra/minio"
	"github.com/EbrithilNogare/frameconv/internal/infra/postgres"
	"github.com/EbrithilNogare/frameconv/internal/infra/rabbitmq"
	"github.com/EbrithilNogare/frameconv/internal/infra/still"
	"github.com/EbrithilNogare/frameconv/internal/usecase"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(cli.ExitConfig)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := cli.Bootstrap(ctx, cfg, "frameconv-worker")
	fatalOnErr(err, "bootstrap")
	defer rt.Close()
	log := rt.Logger

	log.Info("starting frameconv worker")

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:        cfg.MinIOEndpoint,
		AccessKey:       cfg.MinIOAccessKey,
		SecretKey:       cfg.MinIOSecretKey,
		UseSSL:          cfg.MinIOUseSSL,
		FramesBucket:    cfg.MinIOFramesBucket,
		ArtifactsBucket: cfg.MinIOArtifactsBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Conversion adapters
	enumerator, err := cli.NewEnumerator(cfg)
	fatalOnErr(err, "create frame enumerator")
	decoder, err := cli.NewFrameDecoder(cfg)
	fatalOnErr(err, "create frame decoder")
	videoDecoder, err := cli.NewVideoFrameDecoder(cfg)
	fatalOnErr(err, "create video frame decoder")
	format, err := still.ParseFormat(cfg.StillFormat)
	fatalOnErr(err, "parse still format")
	writer, err := still.NewWriter(format)
	fatalOnErr(err, "create still writer")

	stills := usecase.NewConvertStillsUseCase(enumerator, decoder, writer, log)
	video := usecase.NewEncodeVideoUseCase(enumerator, videoDecoder, ffmpeg.NewEncoder(cfg.FFmpegPath, log), log)
	if cfg.VerifyVideo {
		video.WithProber(ffmpeg.NewProber(cfg.FFprobePath))
	}

	repo := postgres.NewJobRepository(pool)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	uc := usecase.NewProcessRequestUseCase(
		repo, storage, stills, video, archive.NewZipArchiver(),
		statusPub, dlqPub, notifier,
		log,
		usecase.ProcessRequestConfig{
			TempDir:    cfg.TempDir,
			MaxRetries: cfg.MaxRetries,
			FrameRate:  cfg.FrameRate,
			Codec:      cfg.Codec,
		},
	)

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQConvertQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")
	defer consumer.Close()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("frameconv worker started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	log.Info("frameconv worker stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
