//	@title			Dallosh Task API
//	@version		1.0
//	@description	Task lifecycle orchestration and live event distribution for the Dallosh analysis pipeline

//	@BasePath	/api/v0

//	@tag.name			tasks
//	@tag.description	Task lifecycle commands and CRUD

//	@tag.name			streams
//	@tag.description	Server-Sent Events task streams

//	@tag.name			health
//	@tag.description	Readiness of the broker and the database

package main

import (
	"os"

	"github.com/dallosh/analysis/cli"
)

func main() {
	cmd := cli.RootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
