package main

import (
	"context"
	"log"
	"os"

	"github.com/ahmedsayedsa/orderbot/internal/cli"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		log.Printf("orderbot: %v", err)
		os.Exit(1)
	}
}
