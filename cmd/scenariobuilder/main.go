package main

import (
	"log"

	"github.com/JFRP-89/ScenarioBuilder-sub000/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
