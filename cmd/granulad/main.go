// Copyright 2026 The Granula Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command granulad runs the ingestion service: it wires together the
// Persistence Gateway, blob store, worker pool, lifecycle manager and
// HTTP surface, then serves until interrupted.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/llevkovych/granula/internal/backoff"
	"github.com/llevkovych/granula/internal/blobstore"
	"github.com/llevkovych/granula/internal/config"
	"github.com/llevkovych/granula/internal/csvio"
	"github.com/llevkovych/granula/internal/httpapi"
	"github.com/llevkovych/granula/internal/lifecycle"
	"github.com/llevkovych/granula/internal/queue"
	"github.com/llevkovych/granula/internal/store"
	"github.com/llevkovych/granula/internal/store/postgres"
	"github.com/llevkovych/granula/internal/store/sqlite"
	"github.com/llevkovych/granula/internal/workerpool"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.New()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	gw, effectiveConcurrency, err := openGateway(cfg)
	if err != nil {
		log.WithError(err).Fatal("could not open persistence gateway")
	}
	defer gw.Close()

	ctx := context.Background()
	if err := gw.EnsureSchema(ctx); err != nil {
		log.WithError(err).Fatal("could not ensure schema")
	}

	blobDir := os.Getenv("BLOB_STORE_DIR")
	if blobDir == "" {
		blobDir = "./data/blobs"
	}
	blobs, err := blobstore.NewDirStore(blobDir)
	if err != nil {
		log.WithError(err).Fatal("could not open blob store")
	}

	dialect := csvio.NewDialect()
	bp := backoff.New(cfg.BaseBackoff, cfg.MaxBackoff)

	q := queue.New()
	pool := workerpool.NewPool(q, effectiveConcurrency)
	exec := workerpool.NewExecutor(gw, blobs, dialect, bp, cfg.MaxRetries, pool.Enqueue, cfg.DeleteFileOnComplete, log)
	pool.SetExecutor(exec)

	mgr := lifecycle.NewManager(gw, blobs, pool, dialect, cfg.ChunkSize, log)

	runCtx, cancel := context.WithCancel(ctx)
	pool.Start(runCtx)

	if !cfg.DisableBackground {
		if err := mgr.Recover(ctx); err != nil {
			log.WithError(err).Error("recovery failed")
		}
	}

	srv := httpapi.NewServer(gw, blobs, mgr, cfg, log)
	httpServer := &http.Server{
		Addr:    addr(),
		Handler: srv,
	}

	go func() {
		log.WithField("addr", httpServer.Addr).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	cancel()
	if err := pool.Stop(); err != nil {
		log.WithError(err).Error("worker pool stop failed")
	}
}

// openGateway picks the Gateway implementation from DATABASE_URL's
// scheme, and returns the effective concurrency the backend allows.
// Single-writer backends (sqlite) cap concurrency at 1 regardless of
// MAX_CONCURRENCY, per spec §4.5.
func openGateway(cfg *config.Config) (store.Gateway, int, error) {
	if strings.HasPrefix(cfg.DatabaseURL, "sqlite://") {
		path := strings.TrimPrefix(cfg.DatabaseURL, "sqlite://")
		gw, err := sqlite.Open(path)
		if err != nil {
			return nil, 0, err
		}
		return gw, 1, nil
	}
	gw, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, 0, err
	}
	return gw, cfg.MaxConcurrency, nil
}

func addr() string {
	if a := os.Getenv("LISTEN_ADDR"); a != "" {
		return a
	}
	return ":8080"
}
