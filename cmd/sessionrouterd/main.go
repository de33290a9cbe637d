// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Command sessionrouterd runs the voice-session router as a standalone
// daemon: load configuration, build a logger, start the event loop, and
// wait for either a fatal internal error or an OS shutdown signal.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rapidaai/sessionrouter/internal/commons"
	"github.com/rapidaai/sessionrouter/internal/config"
	"github.com/rapidaai/sessionrouter/pkg/sessionrouter"
)

func main() {
	v, err := config.InitConfig()
	if err != nil {
		log.Fatalf("sessionrouterd: init config: %v", err)
	}
	appCfg, err := config.GetApplicationConfig(v)
	if err != nil {
		log.Fatalf("sessionrouterd: load config: %v", err)
	}

	logger, err := commons.NewApplicationLoggerWithOptions(commons.Options{
		Level:       appCfg.LogLevel,
		LogFilePath: appCfg.CaptureDirPath,
	})
	if err != nil {
		log.Fatalf("sessionrouterd: build logger: %v", err)
	}
	defer logger.Sync()

	logger.Infow("sessionrouterd starting", "name", appCfg.Name, "version", appCfg.Version, "port", appCfg.Port)

	router, err := sessionrouter.New(appCfg, logger)
	if err != nil {
		logger.Fatalf("sessionrouterd: build router: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// router.Start blocks until gCtx is cancelled (shutdown signal) or
		// a SESSION_TERMINATE-style global TERMINATE command is pushed by
		// another caller; either way Run tears down every destination
		// before returning.
		return router.Start(gCtx)
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Infow("sessionrouterd: shutdown signal received")
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Errorw("sessionrouterd: exited with error", "err", err)
		os.Exit(1)
	}
	logger.Infow("sessionrouterd: exited cleanly")
}
