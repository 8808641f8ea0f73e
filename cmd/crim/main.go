package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/crim/internal/app"
	"github.com/dmitrijs2005/crim/internal/buildinfo"
	"github.com/dmitrijs2005/crim/internal/cli"
	"github.com/dmitrijs2005/crim/internal/config"
	"github.com/dmitrijs2005/crim/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	core, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Printf("%v", err)
		return
	}
	defer core.Close(context.Background())

	core.InitSignalHandler(ctx, func() {
		_ = core.Close(context.Background())
		os.Exit(130)
	})

	cli.NewApp(core.Identity, core.Envelope, core.Relay, cfg.RequireFriends, os.Stdin, os.Stdout).Run(ctx)

}
