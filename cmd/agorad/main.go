package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bohrm1/agora/internal/lifecycle"
)

func main() {
	cfgPath := flag.String("config", "agora.toml", "path to the server's TOML configuration")
	flag.Parse()

	ctrl, err := lifecycle.Init(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agorad: init: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	runErr := ctrl.Run(ctx)
	ctrl.Report().WriteTable(os.Stdout)

	if runErr != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "agorad: %v\n", runErr)
		os.Exit(1)
	}
}
