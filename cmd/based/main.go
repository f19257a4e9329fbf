package main

import (
	"os"

	"github.com/thenotsodarkknight/based/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
