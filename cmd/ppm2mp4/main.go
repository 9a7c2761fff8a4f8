// Command ppm2mp4 stitches the PPM frames of a render into output.mp4.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/EbrithilNogare/frameconv/internal/cli"
	"github.com/EbrithilNogare/frameconv/internal/domain/entity"
	"github.com/EbrithilNogare/frameconv/internal/infra/config"
	"github.com/EbrithilNogare/frameconv/internal/infra/ffmpeg"
	"github.com/EbrithilNogare/frameconv/internal/usecase"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		return cli.ExitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := cli.Bootstrap(ctx, cfg, "frameconv-ppm2mp4")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return cli.ExitConfig
	}
	defer rt.Close()
	log := rt.Logger

	enumerator, err := cli.NewEnumerator(cfg)
	if err != nil {
		log.Error("invalid config", zap.Error(err))
		return cli.ExitConfig
	}
	decoder, err := cli.NewVideoFrameDecoder(cfg)
	if err != nil {
		log.Error("invalid config", zap.Error(err))
		return cli.ExitConfig
	}
	if _, err := ffmpeg.LookupCodec(cfg.Codec); err != nil {
		log.Error("invalid config", zap.Error(err))
		return cli.ExitConfig
	}

	uc := usecase.NewEncodeVideoUseCase(
		enumerator,
		decoder,
		ffmpeg.NewEncoder(cfg.FFmpegPath, log),
		log,
	)
	if cfg.VerifyVideo {
		uc.WithProber(ffmpeg.NewProber(cfg.FFprobePath))
	}

	if _, err := uc.Execute(ctx, cfg.Pipeline(entity.PipelineVideo)); err != nil {
		return cli.ExitFailure
	}
	return cli.ExitOK
}
