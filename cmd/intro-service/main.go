package main

import (
	"os"

	"github.com/CaputoDavide93/new-starters-meetup/introservice"
)

func main() {
	if err := introservice.Run(); err != nil {
		os.Exit(1)
	}
}
