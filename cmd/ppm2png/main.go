// Command ppm2png converts every PPM frame of a render into a still image.
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
	"github.com/EbrithilNogare/frameconv/internal/infra/still"
	"github.com/EbrithilNogare/frameconv/internal/infra/watch"
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

	rt, err := cli.Bootstrap(ctx, cfg, "frameconv-ppm2png")
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
	decoder, err := cli.NewFrameDecoder(cfg)
	if err != nil {
		log.Error("invalid config", zap.Error(err))
		return cli.ExitConfig
	}
	format, err := still.ParseFormat(cfg.StillFormat)
	if err != nil {
		log.Error("invalid config", zap.Error(err))
		return cli.ExitConfig
	}
	writer, err := still.NewWriter(format)
	if err != nil {
		log.Error("invalid config", zap.Error(err))
		return cli.ExitConfig
	}

	uc := usecase.NewConvertStillsUseCase(enumerator, decoder, writer, log)
	pcfg := cfg.Pipeline(entity.PipelineStills)

	if cfg.Watch {
		err = uc.Watch(ctx, pcfg, watch.New(cfg.WatchSettle, enumerator.Order(), log))
	} else {
		_, err = uc.Execute(ctx, pcfg)
	}
	if err != nil {
		// The use case has already logged the run failure.
		return cli.ExitFailure
	}
	return cli.ExitOK
}
