package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/amongais/amongais-server/core"
	"github.com/amongais/amongais-server/model"
)

var (
	version  = "dev"
	revision = "unknown"
	build    = "unknown"
)

func main() {
	core.SetVersion(version, revision, build)

	if err := godotenv.Load(); err != nil {
		slog.Warn(".envファイルが見つかりません", "error", err)
	}

	var configPath string
	flag.StringVar(&configPath, "c", "./config/default.yml", "設定ファイルのパス")
	flag.Parse()

	config, err := model.LoadFromPath(configPath)
	if err != nil {
		slog.Error("設定ファイルの読み込みに失敗しました", "error", err, "path", configPath)
		os.Exit(1)
	}

	server, err := core.NewServer(*config)
	if err != nil {
		slog.Error("サーバの作成に失敗しました", "error", err)
		os.Exit(1)
	}
	server.Run()
}
