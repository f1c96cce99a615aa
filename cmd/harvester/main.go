package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/baxromumarov/shelf-harvester/internal/config"
	"github.com/baxromumarov/shelf-harvester/internal/core"
	"github.com/baxromumarov/shelf-harvester/internal/httpx"
	"github.com/baxromumarov/shelf-harvester/internal/render"
	"github.com/baxromumarov/shelf-harvester/internal/report"
	"github.com/baxromumarov/shelf-harvester/internal/store"
	"github.com/baxromumarov/shelf-harvester/internal/urlutil"
)

const usage = `usage:
  harvester <category-url>
  harvester <product-url> <region>

example:
  harvester "https://www.vprok.ru/catalog/7382/pomidory-i-ovoschnye-nabory"
  harvester "https://www.vprok.ru/product/domik-v-derevne-dom-v-der-moloko-ster-3-2-950g--309202" "Санкт-Петербург и область"
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("harvest failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || len(args) > 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	browser := render.NewBrowser(cfg.RenderOptions(), logger)
	defer browser.Close()

	opts := []core.Option{core.WithLogger(logger), core.WithRenderer(browser)}
	if cfg.Store.Driver != "" {
		st, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.RunMigrations(ctx); err != nil {
			return err
		}
		opts = append(opts, core.WithStore(st))
	}

	svc := core.NewHarvestService(
		cfg.HarvestSettings(),
		httpx.NewPoliteClient(cfg.ClientOptions()),
		httpx.NewCollyFetcher(cfg.ClientOptions()),
		opts...,
	)

	locator := args[0]
	if len(args) == 2 || urlutil.DetectPageType(locator) == urlutil.PageTypeProduct {
		region := ""
		if len(args) == 2 {
			region = args[1]
		}
		return harvestProduct(ctx, svc, cfg.Output.Dir, locator, region)
	}
	return harvestCategory(ctx, svc, cfg.Output.Dir, locator)
}

func harvestCategory(ctx context.Context, svc *core.HarvestService, dir, locator string) error {
	result, err := svc.HarvestCategory(ctx, locator)
	if err != nil {
		return err
	}

	jsonPath, textPath, err := report.SaveCategory(dir, result)
	if err != nil {
		return err
	}
	slog.Info("results saved", "json", jsonPath, "report", textPath)

	if err := report.WriteSummary(os.Stdout, result, 3); err != nil {
		return err
	}
	if !result.Metadata.Success {
		fmt.Fprintln(os.Stdout, "No products found.")
	}
	return nil
}

func harvestProduct(ctx context.Context, svc *core.HarvestService, dir, productURL, region string) error {
	detail, err := svc.HarvestProduct(ctx, productURL, region)
	if err != nil {
		return err
	}

	textPath, shotPath, err := report.SaveDetail(dir, detail)
	if err != nil {
		return err
	}
	slog.Info("product saved", "report", textPath, "screenshot", shotPath)

	return report.WriteDetail(os.Stdout, detail)
}
