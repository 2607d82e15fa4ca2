// Command check runs the image check against one file and logs the result.
//
//	check <path>
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/mansoorceksport/imgcheck/internal/config"
	"github.com/mansoorceksport/imgcheck/internal/logging"
	"github.com/mansoorceksport/imgcheck/internal/service"
)

func main() {
	os.Exit(run(os.Args[1:], logConfig(), os.Stderr))
}

func logConfig() config.LogConfig {
	cfg, err := config.Load()
	if err != nil {
		return config.LogConfig{Level: "info", Format: "text"}
	}
	return cfg.Log
}

func run(args []string, logCfg config.LogConfig, w io.Writer) int {
	log := logging.NewWithWriter(logCfg, w)

	if len(args) < 1 {
		log.Error("Please provide image file path as an argument")
		return 1
	}

	path := args[0]
	result, err := service.NewImageValidator(log).Check(context.Background(), path)
	if err != nil {
		log.Error("Image check failed", "path", path, "error", err)
		return 1
	}

	body, err := json.Marshal(result)
	if err != nil {
		log.Error("Failed to encode result", "error", err)
		return 1
	}
	log.Info(string(body), "path", path)

	return 0
}
