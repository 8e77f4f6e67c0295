package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"SVIXScreener/internal/calculator"
	"SVIXScreener/internal/collector"
	"SVIXScreener/internal/config"
	"SVIXScreener/internal/handler"
	"SVIXScreener/internal/logger"
	"SVIXScreener/internal/notifier"
	"SVIXScreener/internal/scheduler"
	"SVIXScreener/internal/scraper"
	"SVIXScreener/internal/screener"
	"SVIXScreener/internal/store"
	"SVIXScreener/internal/table"

	"github.com/gin-gonic/gin"
)

const _exchangeTZ = "Asia/Riyadh"

func main() {
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	zapLogger, flush, err := logger.NewZapLogger(logger.Level(cfg.Log.Level))
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer flush()

	if err := cfg.Validate(); err != nil {
		zapLogger.Fatalf("%s: config validation", err)
	}
	zapLogger.Infof("SVIX screener starting")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	defaults, err := defaultQuery(cfg)
	if err != nil {
		zapLogger.Fatalf("%s: default query", err)
	}
	ttl, err := cfg.CacheTTL()
	if err != nil {
		zapLogger.Fatalf("%s", err)
	}

	fetcher, err := newFetcher(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatalf("%s: init fetcher", err)
	}
	zapLogger.Infof("data source: %s", fetcher.Name())
	col := collector.NewCollector(fetcher, cfg.Collector.HistoryWeeks, cfg.Collector.Workers, zapLogger)

	var st store.Store = store.NewNoopStore()
	if cfg.Database.SQLitePath != "" {
		sqlStore, err := store.NewSQLiteStore(cfg.Database.SQLitePath, zapLogger)
		if err != nil {
			zapLogger.Warnf("%s: init sqlite store, using noop", err)
		} else {
			st = sqlStore
		}
	}
	defer func() {
		if err := st.Close(); err != nil {
			zapLogger.Errorf("%s: close store", err)
		}
	}()

	svc := screener.NewService(col, newUniverse(cfg, zapLogger), st, ttl, cfg.Universe.Suffix, zapLogger)

	var (
		sender scheduler.Sender
		tn     *notifier.TelegramNotifier
	)
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, zapLogger)
		sender = tn
	}

	sched := scheduler.NewScheduler(ctx, svc, sender, defaults, zapLogger)
	if err := sched.RegisterAll(cfg.Schedule.RefreshCron, cfg.Schedule.ReportCron); err != nil {
		zapLogger.Fatalf("%s: register cron tasks", err)
	}
	sched.Start()
	defer sched.Stop()

	var wg sync.WaitGroup

	if tn != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tn.StartPolling(ctx, sched.HandleCommand)
		}()
		zapLogger.Infof("telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		zapLogger.Infof("RUN_ON_START enabled, refreshing prices now")
		go sched.RunRefreshNow()
	}

	gin.SetMode(gin.ReleaseMode)
	h := handler.NewHandler(svc, defaults, zapLogger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           h.InitRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatalf("can't start server: %s", err)
		}
	}()
	zapLogger.Infof("started server on port %d", cfg.HTTP.Port)

	<-ctx.Done()
	zapLogger.Infof("shutdown signal received, stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Errorf("can't shutdown server: %s", err)
	}
	wg.Wait()
	zapLogger.Infof("SVIX screener stopped")
}

func defaultQuery(cfg *config.Config) (screener.Query, error) {
	interval, err := calculator.ParseInterval(cfg.Screener.Interval)
	if err != nil {
		return screener.Query{}, err
	}
	sortKey, err := table.ParseSortKey(cfg.Screener.Sort)
	if err != nil {
		return screener.Query{}, err
	}
	return screener.Query{
		Interval:      interval,
		Lookback:      cfg.Screener.Lookback,
		Threshold:     cfg.Screener.Threshold,
		SortKey:       sortKey,
		ShowMarketCap: cfg.Screener.ShowMarketCap,
		Limit:         cfg.Screener.ReportLimit,
	}, nil
}

func newFetcher(cfg *config.Config, l logger.Logger) (collector.Fetcher, error) {
	switch {
	case cfg.DataSource.Mock:
		return &collector.MockFetcher{Price: 30}, nil
	case cfg.DataSource.BaseURL != "":
		loc, err := time.LoadLocation(_exchangeTZ)
		if err != nil {
			return nil, err
		}
		return collector.NewRESTFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy, loc), nil
	default:
		return collector.NewYahooFetcher(cfg.Proxy, l), nil
	}
}

func newUniverse(cfg *config.Config, l logger.Logger) screener.Universe {
	if len(cfg.Universe.Tickers) > 0 {
		return screener.StaticUniverse(cfg.Universe.Tickers)
	}
	return &scraper.Source{
		Scraper: scraper.NewScraper(cfg.Universe.Suffix, cfg.Proxy, l),
		URL:     cfg.Universe.ListingURL,
		Samples: cfg.Universe.Samples,
	}
}
