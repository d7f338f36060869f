package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mensylisir/xmbuild/cli"
	"github.com/mensylisir/xmbuild/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		logger.Log.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}
