package main

import (
	"os"

	"glaspolitics.ie/pulse/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
