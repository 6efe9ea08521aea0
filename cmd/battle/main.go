package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg := &Config{}
	cobra.CheckErr(newCmd(cfg, os.Stdin, os.Stdout).ExecuteContext(ctx))
}
