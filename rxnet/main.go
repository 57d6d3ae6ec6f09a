package main

import (
	"log"

	"github.com/tutils/rxnet/cmd"
)

func main() {
	log.SetFlags(log.Ltime | log.Lshortfile)
	cmd.Execute()
}
