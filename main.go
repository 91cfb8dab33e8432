package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/diffuse/engine"
)

func main() {
	configPath := "diffuse.toml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	app, err := engine.New(configPath)
	if err != nil {
		panic(err)
	}

	if err := app.Initialize(); err != nil {
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		<-sigCh
		_ = app.Shutdown()
	}()

	if err := app.Run(); err != nil {
		panic(err)
	}

	if err := app.Shutdown(); err != nil {
		panic(err)
	}
}
