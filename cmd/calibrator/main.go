package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Alias1177/Calibrator/internal/analyze"
	"github.com/Alias1177/Calibrator/internal/config"
	"github.com/Alias1177/Calibrator/internal/effectiveness"
	"github.com/Alias1177/Calibrator/models"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logging
	setupLogging(cfg.LogLevel, cfg.LogFile)
	log.Info().Msg("Starting Calibrator")
	printConfig(cfg)

	tuning, err := config.LoadTuning(cfg.TuningFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.TuningFile).Msg("Failed to load tuning")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Effectiveness history
	store := effectiveness.NewStore(nil)
	source, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("source", cfg.EffectivenessSource).Msg("Failed to open effectiveness source")
	}
	defer closeSource()

	var refresher *effectiveness.Refresher
	if source != nil {
		refresher = effectiveness.NewRefresher(store, source, effectiveness.RefresherOptions{Interval: cfg.RefreshInterval})
		if err := refresher.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("Starting without effectiveness history")
		}
		if cfg.Watch > 0 {
			go func() {
				if err := refresher.Run(ctx); err != nil && ctx.Err() == nil {
					log.Error().Err(err).Msg("Effectiveness refresher stopped")
				}
			}()
		}
	}

	setupSignalHandling(cancel, refresher)

	// 4. Compute
	engine := analyze.NewEngine(tuning)
	runOnce(engine, cfg, store, os.Stdout)
	if cfg.Watch <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.Watch)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Calibrator stopped")
			return
		case <-ticker.C:
			runOnce(engine, cfg, store, os.Stdout)
		}
	}
}

// result is one line of output per symbol
type result struct {
	Symbol string                  `json:"symbol"`
	Params *models.TradeParameters `json:"params,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// runOnce computes every configured symbol in parallel and prints results in symbol order
func runOnce(engine *analyze.Engine, cfg *config.Config, store *effectiveness.Store, out io.Writer) {
	results := make([]result, len(cfg.Symbols))

	var wg sync.WaitGroup
	for k, symbol := range cfg.Symbols {
		wg.Add(1)
		go func(k int, symbol string) {
			defer wg.Done()
			results[k] = computeSymbol(engine, cfg, store, symbol)
		}(k, symbol)
	}
	wg.Wait()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			log.Error().Err(err).Str("symbol", r.Symbol).Msg("Failed to write result")
		}
	}

	stats := engine.Regimes().Statistics()
	log.Debug().
		Str("current", string(stats.Current)).
		Float64("confidence", stats.Confidence).
		Int("samples", stats.Samples).
		Interface("distribution", stats.Distribution).
		Msg("Regime statistics")
}

func computeSymbol(engine *analyze.Engine, cfg *config.Config, store *effectiveness.Store, symbol string) result {
	window, err := loadWindow(cfg.WindowDir, symbol)
	if err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("Failed to load market window")
		return result{Symbol: symbol, Error: err.Error()}
	}

	params, err := engine.ComputeTradeParameters(analyze.Request{
		Window:        window,
		Index:         window.Len() - 1,
		Direction:     cfg.Direction,
		Account:       cfg.Account,
		Base:          cfg.Base,
		Instrument:    cfg.Instrument(),
		Effectiveness: store,
	})
	if err != nil {
		return result{Symbol: symbol, Error: err.Error()}
	}
	return result{Symbol: symbol, Params: params}
}

// loadWindow reads <dir>/<SYMBOL>.json, either a window object or a bare candle array
func loadWindow(dir, symbol string) (models.MarketWindow, error) {
	data, err := os.ReadFile(filepath.Join(dir, symbol+".json"))
	if err != nil {
		return models.MarketWindow{}, fmt.Errorf("read window: %w", err)
	}

	var w models.MarketWindow
	if err := json.Unmarshal(data, &w); err != nil {
		var candles []models.Candle
		if err2 := json.Unmarshal(data, &candles); err2 != nil {
			return models.MarketWindow{}, fmt.Errorf("decode window: %w", err)
		}
		w.Candles = candles
	}
	if w.Symbol == "" {
		w.Symbol = symbol
	}
	if w.Len() == 0 {
		return models.MarketWindow{}, fmt.Errorf("window %s has no candles", symbol)
	}
	return w, nil
}

// setupSignalHandling cancels on SIGINT/SIGTERM and reloads effectiveness on SIGHUP
func setupSignalHandling(cancel context.CancelFunc, refresher *effectiveness.Refresher) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range c {
			if sig == syscall.SIGHUP {
				if refresher == nil || !refresher.Trigger() {
					log.Warn().Msg("Effectiveness reload skipped")
				}
				continue
			}
			log.Info().Msg("Shutdown signal received, exiting...")
			cancel()
			return
		}
	}()
}

// setupLogging configures the console logger and, when file is set, a rotating log file
func setupLogging(logLevel, file string) {
	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if file != "" {
		output = zerolog.MultiLevelWriter(output, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}

func printConfig(cfg *config.Config) {
	log.Info().
		Strs("symbols", cfg.Symbols).
		Str("window_dir", cfg.WindowDir).
		Str("direction", string(cfg.Direction)).
		Str("trade_mode", string(cfg.Account.TradeMode)).
		Float64("deposit", cfg.Account.Deposit).
		Str("effectiveness_source", cfg.EffectivenessSource).
		Dur("watch", cfg.Watch).
		Msg("Configuration loaded")
}
