package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"eva/internal/config"
	"eva/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	socketPath := flag.String("socket", "", "daemon control socket path")
	logLevel := flag.String("log-level", "", "log level override")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	opts := daemonrun.Options{
		LogLevel:   *logLevel,
		SocketPath: *socketPath,
	}
	if err := daemonrun.Run(context.Background(), cfg, opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
