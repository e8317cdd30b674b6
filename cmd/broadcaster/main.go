package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"sheetcast/internal/app"
	"sheetcast/internal/config"
)

func main() {
	var opts app.Options
	flag.StringVar(&opts.ConfigPath, "config", "./sheetcast.yaml", "path to optional config yaml")
	flag.StringVar(&opts.EnvFile, "env", ".env", "path to optional .env file")
	flag.StringVar(&opts.CredentialsFile, "credentials", config.CredentialsFile, "service-account credentials json")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	b, err := app.NewBroadcaster(ctx, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	if err := b.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}
