package main

import (
	"flag"
	"log"

	"super-mouse-ai/internal/bootstrap"
	"super-mouse-ai/internal/config"
)

func main() {
	optionsPath := flag.String("options", "", "path to options.yaml")
	flag.Parse()

	opts, err := config.LoadOptions(config.ResolveOptionsPath(*optionsPath))
	if err != nil {
		log.Fatalf("load options: %v", err)
	}

	app, err := bootstrap.New(opts)
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}
