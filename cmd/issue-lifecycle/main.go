package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/errwatch/issue-lifecycle-service/internal/config"
	"github.com/errwatch/issue-lifecycle-service/internal/eventstream"
	"github.com/errwatch/issue-lifecycle-service/internal/integrations"
	"github.com/errwatch/issue-lifecycle-service/internal/repository/postgres"
	"github.com/errwatch/issue-lifecycle-service/internal/service"
	"github.com/errwatch/issue-lifecycle-service/internal/taskqueue"
	myhttp "github.com/errwatch/issue-lifecycle-service/internal/transport/http"
	"github.com/errwatch/issue-lifecycle-service/internal/worker"
	"github.com/errwatch/issue-lifecycle-service/pkg/logger/slogpretty"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.MustLoad()
	log := slogpretty.SetupLogger(cfg.Env)

	log.Info("starting issue-lifecycle-service", slog.String("env", cfg.Env))

	errChan := make(chan error, 1)

	pg, err := postgres.NewDB(cfg.Postgres, log)
	if err != nil {
		return fmt.Errorf("failed to init db: %v", err)
	}
	defer func() {
		if err := pg.DB().Close(); err != nil {
			log.Error("db close failed", slog.String("error", err.Error()))
		}
	}()

	db := pg.DB()

	groupRepo := postgres.NewGroupRepository(db, log)
	recordRepo := postgres.NewRecordRepository(db, log)
	linkRepo := postgres.NewLinkRepository(db, log)
	projectRepo := postgres.NewProjectRepository(db, log)

	stream := eventstream.NewClient(cfg.EventStream)
	syncer := integrations.NewWebhookSyncer(cfg.Features.IntegrationURL, cfg.Server.Timeout)
	outbox := taskqueue.NewOutbox(db, log)

	groupService := service.NewGroupService(
		db,
		log,
		groupRepo,
		groupRepo,
		recordRepo,
		linkRepo,
		projectRepo,
		stream,
		service.NewSnoozeEvaluator(stream),
		outbox,
		syncer,
		cfg.Features,
	)

	wrk := worker.New(db, log, groupRepo, recordRepo, linkRepo, stream)

	runner := taskqueue.NewRunner(outbox, log, cfg.TaskQueue)
	runner.Register(taskqueue.TaskMergeGroups, wrk.HandleMergeGroups)
	runner.Register(taskqueue.TaskDeleteGroups, wrk.HandleDeleteGroups)

	runnerDone := make(chan struct{})

	go func() {
		defer close(runnerDone)
		runner.Run(ctx)
	}()

	srv := myhttp.NewServer(log, groupService)
	httpServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Routes(),
	}

	go startServer(log, httpServer, errChan)

	select {
	case err := <-errChan:
		return fmt.Errorf("http server error: %v", err)

	case <-ctx.Done():
		log.Info("stopping server...")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down http server: %v", err)
	}

	select {
	case <-runnerDone:
	case <-shutdownCtx.Done():
		log.Warn("task runner did not stop in time")
	}

	return nil
}

func startServer(log *slog.Logger, httpServer *http.Server, errChan chan error) {
	defer close(errChan)

	log.Info("service started", slog.String("addr", httpServer.Addr))

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		errChan <- fmt.Errorf("error listening and serving: %v", err)
	}
}
