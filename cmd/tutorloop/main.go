package main

import (
	"os"

	"github.com/yungbote/tutorloop-backend/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
