package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"docuchat/internal/adapter/weaviate"
	"docuchat/internal/app"
	"docuchat/internal/config"
	"docuchat/internal/logger"
)

func main() {
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("application exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.DB.Close()
	defer deps.NSQProducer.Stop()

	embedder, closeEmbedder, err := app.NewEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeEmbedder()

	chatModels, err := app.BuildChatModels(ctx, cfg)
	if err != nil {
		return err
	}

	vecStore := weaviate.NewStore(deps.Weaviate)

	a, err := app.New(cfg, deps.DB, embedder, vecStore, chatModels, deps.NSQProducer)
	if err != nil {
		return err
	}

	if cfg.EnablePipeline {
		consumer, err := nsq.NewConsumer(config.TopicDocumentProcess, config.ChannelPipeline, nsq.NewConfig())
		if err != nil {
			return err
		}
		consumer.AddHandler(nsq.HandlerFunc(a.Consumer.HandleMessage))
		if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
			return err
		}
		defer consumer.Stop()
		slog.Info("pipeline consumer connected", "topic", config.TopicDocumentProcess)
	}

	if !cfg.EnableAPI {
		slog.Info("API disabled, running pipeline only")
		<-ctx.Done()
		return nil
	}

	return a.Run(ctx)
}
