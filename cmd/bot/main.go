package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"quackbot/internal/core"
	"quackbot/plugins/ai"
	"quackbot/plugins/events"
	"quackbot/plugins/jam"
	"quackbot/plugins/queue"
	"quackbot/plugins/system"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (json or yaml)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := core.NewApp(ctx, cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if err := app.Plugins().Register(
		system.New(),
		queue.New(),
		events.New(),
		jam.New(),
		ai.New(),
	); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}
