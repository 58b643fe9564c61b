package main

import (
	"github.com/localwebb/backend/internal/server"
	"github.com/localwebb/backend/internal/util"
	"github.com/localwebb/backend/pkg/logger"
	"github.com/localwebb/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
