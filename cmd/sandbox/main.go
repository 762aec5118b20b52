package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hongminglow/aratiri-client/internal/config"
	"github.com/hongminglow/aratiri-client/internal/ledger"
	"github.com/hongminglow/aratiri-client/internal/server"
)

func main() {
	loadLocalEnv()

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	l := ledger.New(ledger.WithInitialBalance(cfg.InitialBalanceSats))
	srv := server.New(cfg, l)

	go func() {
		log.Printf("Aratiri sandbox listening on %s (API under %s)", cfg.HTTPAddress(), server.APIPrefix)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}
