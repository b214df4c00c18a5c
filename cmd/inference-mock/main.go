package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	mockcmd "github.com/louisbranch/inference-mock/internal/cmd/mock"
	"github.com/louisbranch/inference-mock/internal/platform/config"
)

func main() {
	cfg, err := mockcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	log.SetPrefix("[MOCK] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mockcmd.Run(ctx, cfg); err != nil {
		config.Exitf("Error: failed to serve: %v", err)
	}
}
