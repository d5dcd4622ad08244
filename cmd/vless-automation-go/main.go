package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DaiZhouHui/vless-automation-go/internal/config"
	"github.com/DaiZhouHui/vless-automation-go/internal/github"
	"github.com/DaiZhouHui/vless-automation-go/internal/pipeline"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("配置加载失败: %v", err)
	}

	client, err := github.NewClient(github.Config{
		Token:   cfg.GitHub.Token,
		Repo:    cfg.GitHub.Repo,
		Branch:  cfg.GitHub.Branch,
		Timeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
	})
	if err != nil {
		logger.Fatalf("GitHub 客户端初始化失败: %v", err)
	}

	runner := pipeline.New(&pipeline.Config{
		Settings: cfg,
		GitHub:   client,
		Logger:   logrus.NewEntry(logger),
	})
	if _, err := runner.Run(context.Background()); err != nil {
		logger.Fatalf("工作流执行失败: %v", err)
	}
}
