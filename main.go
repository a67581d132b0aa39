package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"k8s.io/klog/v2"

	"github.com/loomworks/loomspace/dao"
	"github.com/loomworks/loomspace/internal"
	"github.com/loomworks/loomspace/internal/handler"
	"github.com/loomworks/loomspace/internal/util"
	"github.com/loomworks/loomspace/pkg/config"
	"github.com/loomworks/loomspace/pkg/cronjob"
	"github.com/loomworks/loomspace/pkg/enrich"
	"github.com/loomworks/loomspace/pkg/invitation"
	"github.com/loomworks/loomspace/pkg/mailer"
	"github.com/loomworks/loomspace/pkg/objectstore"
	"github.com/loomworks/loomspace/pkg/provision"
	"github.com/loomworks/loomspace/pkg/transfer"
)

const shutdownTimeout = 10 * time.Second

// @title						Loomspace API
// @version						1.0.0
// @description				This is the API server for Loomspace, a multi-tenant collaborative workspace platform.
// @securityDefinitions.apikey	Bearer
// @in							header
// @name						Authorization
func main() {
	// Load environment variables from .env file in debug mode.
	if config.IsDebugMode() {
		if err := godotenv.Load(); err != nil {
			klog.Info("no .env file found, relying on the environment")
		}
	}

	cfg := config.GetConfig()

	db, err := dao.InitDB(cfg)
	if err != nil {
		klog.Fatalf("init database: %v", err)
	}
	if err := dao.Migrate(db); err != nil {
		klog.Fatalf("run migrations: %v", err)
	}
	store := dao.NewStore(db)

	objects, err := objectstore.NewDiskStore(cfg.Storage.RootDir)
	if err != nil {
		klog.Fatalf("init object store: %v", err)
	}

	var enricher enrich.Service
	if cfg.Enrichment.BaseURL != "" {
		enricher = enrich.NewClient(cfg.Enrichment.BaseURL, cfg.Enrichment.Token,
			time.Duration(cfg.Enrichment.Timeout)*time.Second)
	}
	var mail invitation.Mailer
	if cfg.SMTP.Host != "" {
		mail = mailer.New(cfg)
	}

	orchestrator := provision.NewOrchestrator(store, objects)
	invitations := invitation.NewWorkflow(store, orchestrator, mail)
	transfers := transfer.NewWorkflow(store, objects, enricher)

	cronMgr := cronjob.NewManager(store)
	if spec := cfg.Cron.InvitationSweep; spec != "" {
		if err := cronMgr.RegisterInvitationSweep(spec); err != nil {
			klog.Fatalf("register invitation sweep: %v", err)
		}
		cronMgr.Start()
	}

	backend := internal.Register(&handler.RegisterConfig{
		Store:        store,
		Objects:      objects,
		Orchestrator: orchestrator,
		Invitations:  invitations,
		Transfers:    transfers,
		TokenMgr:     util.NewTokenManager(cfg),
	})

	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           backend.R,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		klog.Infof("listening on %s", cfg.ServerAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	klog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		klog.Errorf("shutdown: %v", err)
	}
	<-cronMgr.Stop().Done()
}
