package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sync-labs/model-el-sync/internals"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		log.Fatalln("You need to specify action [ listen | index ]")
	}

	config := &internals.Config{}

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "/app/config.yaml"
	}
	if err := config.LoadFromYaml(configFile); err != nil {
		log.Fatal(err)
	}

	engine := &internals.Engine{}
	if err := engine.Init(config); err != nil {
		log.Fatal(err)
	}
	defer engine.Terminate()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	switch args[0] {
	case "listen":
		if err := engine.Start(ctx); err != nil && ctx.Err() == nil {
			log.Fatal(err)
		}
	case "index":
		if err := engine.FullReindex(ctx); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("Undefined action %s\n", args[0])
	}
}
