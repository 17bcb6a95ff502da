package main

import (
	"log"

	"github.com/parkhaus/parkhaus-backend/cmd"
)

func main() {
	if err := cmd.RunServer(); err != nil {
		log.Fatal(err)
	}
}
