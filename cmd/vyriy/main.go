package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ndanchak/vyriy-income-expense-bot/internal/auth"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/config"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/db"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/drive"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/flow"
	httpx "github.com/ndanchak/vyriy-income-expense-bot/internal/http"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/http/handler"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/jobs"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/ledger"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/ocr"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/session"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/sheets"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/syncer"
	"github.com/ndanchak/vyriy-income-expense-bot/internal/telegram"
)

func main() {
	cfg, _ := config.Load()

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		log.Fatal(err)
	}

	sessions := session.NewStore(gdb)
	jobRepo := jobs.NewRepo(gdb)
	svc := ledger.NewService(gdb, jobRepo)

	tg := telegram.NewClient(cfg.TelegramBotToken)
	notifier := &telegram.Notifier{
		Client:      tg,
		GroupChatID: firstChatID(cfg),
		OwnerChatID: cfg.OwnerChatID,
	}

	mirror := sheets.NewClient(cfg.SheetsBridgeURL, cfg.SheetsBridgeToken)
	reconciler := syncer.NewReconciler(gdb, mirror, notifier, sessions, cfg.ReconcileInterval, cfg.SessionTimeout)
	svc.Syncer = reconciler

	engine := flow.NewEngine(sessions, svc,
		flow.IncomeFlow(),
		flow.IncomeManualFlow(),
		flow.ExpenseFlow(),
	)

	vision := ocr.NewVisionClient(cfg.VisionAPIKey)

	var uploader drive.Uploader
	if cfg.DriveBridgeURL != "" {
		uploader = drive.NewClient(cfg.DriveBridgeURL, cfg.DriveBridgeToken)
	}
	webhook := telegram.NewHandler(engine, svc, tg, vision, uploader, cfg.WebhookSecret, cfg.AllowedChatIDs)

	jwtSvc := auth.NewJWT(cfg.OpsJWTSecret)
	ops := &handler.OpsHandler{
		Ledger:       svc,
		Jobs:         jobRepo,
		Reconciler:   reconciler,
		JWT:          jwtSvc,
		PasswordHash: cfg.OpsPasswordHash,
	}

	r := httpx.NewRouter(cfg, webhook, ops, jwtSvc)

	dispatcher := jobs.NewDispatcher(jobRepo, notifier, notifier, cfg.DispatchInterval)

	ctx, cancel := context.WithCancel(context.Background())
	go dispatcher.Run(ctx)
	go reconciler.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on %s\n", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

// firstChatID picks the team group chat for guest touch points; the
// owner chat is the fallback for single-operator setups.
func firstChatID(cfg config.Config) int64 {
	for _, id := range cfg.AllowedChatIDs {
		if id != cfg.OwnerChatID {
			return id
		}
	}
	return cfg.OwnerChatID
}
