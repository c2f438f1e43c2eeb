package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"lending-risk-engine/internal/alerting"
	"lending-risk-engine/internal/config"
	"lending-risk-engine/internal/ledger"
	"lending-risk-engine/internal/pricefeed"
	"lending-risk-engine/internal/risk"
	"lending-risk-engine/internal/scheduler"
	"lending-risk-engine/internal/service"
	"lending-risk-engine/internal/storage"
	"lending-risk-engine/internal/txbuilder"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newGateway() *ledger.Gateway {
	return ledger.New(ledger.Options{
		RPCURL:          a.Config.Ethereum.RPCURL,
		ContractAddress: a.Config.Ethereum.ContractAddress,
		Timeout:         a.Config.Ethereum.RequestTimeout,
		RetryAttempts:   a.Config.Ethereum.RetryAttempts,
		RetryDelay:      a.Config.Ethereum.RetryDelay,
	}, a.Logger)
}

func (a *App) newPriceClient() *pricefeed.CoinGecko {
	return pricefeed.NewCoinGecko(pricefeed.CoinGeckoOptions{
		BaseURL:   a.Config.Prices.BaseURL,
		APIKey:    a.Config.Prices.APIKey,
		Timeout:   a.Config.Prices.RequestTimeout,
		UserAgent: a.Config.Prices.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newScanner(store *storage.Store, prices pricefeed.HistoryFetcher) *risk.Scanner {
	return risk.NewScanner(risk.ScannerOptions{
		PeriodDays:           a.Config.Prices.WindowDays,
		FetchDelay:           a.Config.Prices.FetchDelay,
		LiquidationThreshold: a.Config.Risk.LiquidationThreshold,
	}, store, store, prices, store, a.Logger)
}

func (a *App) newEngine(store *storage.Store, gateway *ledger.Gateway) *service.Engine {
	scanner := a.newScanner(store, a.newPriceClient())
	builder := txbuilder.New(gateway, a.Logger)

	return service.New(service.Options{
		AdvisoryLockKey:      a.Config.Scheduler.AdvisoryLockKey,
		LiquidationThreshold: a.Config.Risk.LiquidationThreshold,
		AlertChannels:        a.Config.Alerting.Channels,
	}, scanner, builder, gateway, store, store, store, a.newNotifier(), a.Logger)
}

// Run executes the long-running risk engine service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; the risk engine requires postgres")
	}
	defer closeStore()

	gateway := a.newGateway()
	defer gateway.Close()

	engine := a.newEngine(store, gateway)

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToCycle,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	a.Logger.Info().Msg("starting risk engine service")
	err = sched.Run(ctx, engine.ProcessCycle)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("risk engine service stopped")
	return nil
}

// ExportOptions hold parameters for exporting volatility history.
type ExportOptions struct {
	Symbol    string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Symbol string
	Limit  int
}

// BuildTxOptions configure the build-tx command.
type BuildTxOptions struct {
	Operation   string
	UserAddress string
	Symbol      string
	Amount      string
}

// RecordTxOptions configure the record-tx command.
type RecordTxOptions struct {
	UserAddress string
	Symbol      string
	Kind        string
	Amount      string
	TxHash      string
}

// SimulateOptions configure the offline rate simulation.
type SimulateOptions struct {
	PricesCSV   string
	BaseRateBps int64
	Multiplier  int64
}
