package main

import (
	"os"

	"github.com/ziedsayadi/Cvmodel/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
