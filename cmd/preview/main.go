// Command preview mounts a page view against a running API and prints the
// partner notification once its reveal delay has passed.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/franzego/partnernotify/internal/config"
	"github.com/franzego/partnernotify/internal/display"
	"github.com/franzego/partnernotify/internal/models"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	baseURL := pflag.String("api", "http://localhost:8080", "base URL of the notification API")
	page := pflag.String("page", "home", "page identifier to preview")
	configPath := pflag.String("config", "", "config file (defaults to ./config.yaml or ./config/config.yaml)")
	defaultDelay := pflag.Float64("default-delay", 0, "override display.default_delay_seconds")
	pflag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	displayCfg, err := config.LoadDisplay(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if pflag.CommandLine.Changed("default-delay") {
		displayCfg.DefaultDelaySeconds = *defaultDelay
	}

	revealed := make(chan models.Notification, 1)
	presenter, err := display.NewPresenter(
		display.NewHTTPFetcher(*baseURL, logger),
		displayCfg.DefaultDelaySeconds,
		func(pageID string, n models.Notification) { revealed <- n },
		logger,
	)
	if err != nil {
		logger.Fatal("invalid presenter config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := presenter.Mount(ctx, *page); err != nil {
		logger.Fatal("could not load notification", zap.Error(err))
	}
	defer presenter.Unmount()

	pending, remaining := presenter.Pending()
	if pending == nil {
		fmt.Printf("no partner notification for page %q\n", *page)
		return
	}
	logger.Info("notification scheduled",
		zap.String("id", pending.ID),
		zap.Float64("remaining_seconds", remaining),
	)

	select {
	case n := <-revealed:
		fmt.Printf("[%s] %s\n%s\n", *page, n.Title, n.Message)
		if n.LinkURL != "" {
			fmt.Printf("%s -> %s\n", n.ButtonText, n.LinkURL)
		}
	case <-ctx.Done():
		logger.Info("left page before reveal")
	}
}
