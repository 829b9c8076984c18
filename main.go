/*
Example application that drives the engine package with the testbed game.
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/oxygen3d/oxygen/engine"
	"github.com/oxygen3d/oxygen/engine/config"
	"github.com/oxygen3d/oxygen/testbed"
)

const configPath = "config.toml"

func main() {
	cfg := config.Default()
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := config.Load(configPath)
		if err != nil {
			panic(err)
		}
		cfg = loaded
	}

	game := testbed.NewTestGame()

	eng, err := engine.New(game.Game, cfg)
	if err != nil {
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		<-sigCh
		eng.Stop()
	}()

	if err := eng.Run(); err != nil {
		panic(err)
	}

	if err := eng.Shutdown(); err != nil {
		panic(err)
	}
}
