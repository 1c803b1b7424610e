package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ginkida/queue-probe/internal/admission"
	"github.com/ginkida/queue-probe/internal/config"
	"github.com/ginkida/queue-probe/internal/inspector"
	"github.com/ginkida/queue-probe/internal/server"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to config.yaml")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("queue-probe", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	parser, err := inspector.NewParser(cfg.Status)
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	source := inspector.NewCommandInspector(cfg.Status.Shell, cfg.Status.Command, cfg.Status.Timeout(), parser)
	evaluator := admission.NewEvaluator(source, cfg.Queue.MaxLength)

	srv := server.New(cfg, evaluator)

	ln, err := srv.Listen()
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", cfg.Addr(), err)
	}
	log.Printf("Admitting traffic while queue depth < %.1f (max_queue_length=%d)",
		admission.Threshold(cfg.Queue.MaxLength), cfg.Queue.MaxLength)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop

	// In-flight checks end within one status timeout.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Status.Timeout()+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
