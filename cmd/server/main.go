package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"perma-store/blobnet"
	"perma-store/conf"
	"perma-store/controller"
	"perma-store/controller/handler"
	"perma-store/database"
	"perma-store/model/dao"
	"perma-store/payment"
	"perma-store/service/renewal_service"
	"perma-store/service/retrieve_service"
	"perma-store/service/upload_service"
)

func main() {
	log.Println("Starting perma-store...")

	if err := conf.InitConfig(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := conf.Cfg

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	cache, err := database.NewCache(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}

	network, err := blobnet.New(cfg.Blobnet)
	if err != nil {
		log.Fatalf("Failed to create blob network client: %v", err)
	}
	log.Printf("Blob network: %s", cfg.Blobnet.Type)

	var ledger payment.Ledger
	if cfg.Payment.Enabled {
		ledger, err = payment.NewLedgerClient(cfg.Payment.LedgerURL,
			time.Duration(cfg.Payment.TimeoutSeconds)*time.Second)
		if err != nil {
			log.Fatalf("Failed to create ledger client: %v", err)
		}
		log.Printf("Payment ledger: %s", cfg.Payment.LedgerURL)
	} else {
		log.Println("Payment enforcement disabled (bypass mode)")
	}
	gate := payment.NewGate(ledger, cfg.Payment)

	fileDAO := dao.NewFileDAO(db)
	chunkDAO := dao.NewFileChunkDAO(db)
	paymentDAO := dao.NewPaymentRecordDAO(db)

	uploadService := upload_service.NewUploadService(fileDAO, chunkDAO, network, gate, cache, cfg)
	renewalService := renewal_service.NewRenewalService(fileDAO, chunkDAO, paymentDAO, network, gate, cache, cfg)
	retrieveService := retrieve_service.NewRetrieveService(fileDAO, chunkDAO, paymentDAO, network, cache, cfg)

	scheduler := renewal_service.NewScheduler(renewalService, cfg.Renewal.IntervalMinutes)
	scheduler.Start()

	cleanup := upload_service.NewCleanupProcessor(fileDAO, cfg.Renewal.AbandonedGraceHours)
	cleanup.Start()

	router := controller.NewRouter(
		handler.NewUploadHandler(uploadService),
		handler.NewFetchHandler(retrieveService),
		handler.NewAdminHandler(renewalService, retrieveService),
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		log.Printf("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	scheduler.Stop()
	cleanup.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	if closer, ok := network.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Printf("Blob store close error: %v", err)
		}
	}
	if err := cache.Close(); err != nil {
		log.Printf("Redis close error: %v", err)
	}

	log.Println("Shutdown complete")
}
