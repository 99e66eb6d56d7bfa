package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"glasses-cloud-be/internal/bootstrap"
	"glasses-cloud-be/internal/config"
	"glasses-cloud-be/internal/server"
	"glasses-cloud-be/internal/tracer"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_EXPORTER_OTLP_ENDPOINT is set)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)

	// 3. Start Background Services
	go func() {
		log.Println("Background: Starting Session Events Consumer...")
		if err := container.ConsumerService.Consume(context.Background()); err != nil {
			log.Printf("Background Consumer Error: %v", err)
		}
	}()

	// 4. Initialize Server
	srv := server.New(cfg, container)

	// 5. Graceful shutdown: tear every session down so devices and apps
	// get close frames instead of dead sockets.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Println("Shutting down...")
		if err := srv.Shutdown(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		log.Fatal(err)
	}
}
