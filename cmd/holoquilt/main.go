package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/coreman2200/holoquilt/internal/app"
	"github.com/coreman2200/holoquilt/internal/config"
	"github.com/coreman2200/holoquilt/internal/driver/fake"
	"github.com/coreman2200/holoquilt/internal/driver/panel"
	"github.com/coreman2200/holoquilt/internal/driver/preview"
	"github.com/coreman2200/holoquilt/internal/layout"
	"github.com/coreman2200/holoquilt/internal/render"
	"github.com/coreman2200/holoquilt/internal/sequence"
	"github.com/coreman2200/holoquilt/internal/tiling"
	"github.com/coreman2200/holoquilt/internal/ws"
)

func main() {
	// ---- Flags (config.yaml supplies anything not given here) ----
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		addr       = flag.String("addr", "", "HTTP listen address")
		driver     = flag.String("driver", "", "driver: sim | preview | panel")
		fps        = flag.Int("fps", 0, "target frames per second")
		preset     = flag.String("preset", "", "tiling preset (automatic, portrait, 16in-4k, ...)")
		order      = flag.String("order", "", "view scan order (top-left, bottom-left, top-right, bottom-right)")
		display    = flag.Int("display", -1, "display index")
		tourPath   = flag.String("tour", "", "preset tour program (.yaml or .json) to play at start")
		debug      = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// ---- Load config.yaml (optional) ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with defaults")
		cfg = config.Default()
	}

	// ---- Flags override config ----
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *driver != "" {
		cfg.Driver = *driver
	}
	if *fps > 0 {
		cfg.FPS = *fps
	}
	if *display >= 0 {
		cfg.DisplayIndex = *display
	}
	if *preset != "" {
		p, err := tiling.ParsePreset(*preset)
		if err != nil {
			log.Fatal().Err(err).Msg("bad -preset")
		}
		cfg.Tiling.Preset = p
	}
	if *order != "" {
		o, err := layout.ParseOrder(*order)
		if err != nil {
			log.Fatal().Err(err).Msg("bad -order")
		}
		cfg.Tiling.Order = o
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	// ---- Sink: driver output wrapped by the preview publisher ----
	hub := ws.NewHub()
	base := openDriver(cfg)
	pv := preview.New(hub, base)
	pv.SetThrottle(time.Duration(cfg.Preview.ThrottleMs) * time.Millisecond)
	if cfg.Preview.MaxWidth > 0 {
		pv.MaxWidth = cfg.Preview.MaxWidth
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := app.InitCore(ctx, cfg, app.Options{Sink: pv, ConfigPath: *configPath, OnDiag: hub.PushDiag})
	if err != nil {
		log.Fatal().Err(err).Msg("init core")
	}
	defer func() {
		if err := core.Close(); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}()

	if *tourPath != "" {
		prog, err := sequence.LoadProgram(*tourPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *tourPath).Msg("load tour")
		}
		if err := core.PlayTour(prog); err != nil {
			log.Fatal().Err(err).Msg("start tour")
		}
	}

	// ---- HTTP routes ----
	state := ws.NewState(core, hub, cfg.Driver)
	mux := http.NewServeMux()
	state.Routes(mux)
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      withCORS(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ---- Run render loop, config watcher & server ----
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return core.Run(gctx) })
	g.Go(func() error { return core.WatchConfig(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("driver", cfg.Driver).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("exited with error")
	}
}

// openDriver returns the display sink for cfg.Driver, falling back to the
// fake sink when hardware is missing.
func openDriver(cfg *config.Config) render.Sink {
	switch cfg.Driver {
	case "sim":
		return fake.New()
	case "preview":
		return nil
	case "panel":
		pc := cfg.Panel
		d, err := panel.Open(panel.Opts{
			Port:   pc.Port,
			Pixels: pc.Pixels,
			Matrix: panel.Matrix{W: pc.Width, H: pc.Height, Serpentine: pc.Serpentine},
			Limit:  panel.Limiter{WhiteCap: pc.WhiteCap, BudgetmA: pc.BudgetmA},
		})
		if err != nil {
			log.Warn().Err(err).
				Str("driver", "panel").
				Str("port", pc.Port).
				Msg("panel init failed; falling back to SIM")
			return fake.New()
		}
		return d
	default:
		log.Warn().Str("driver", cfg.Driver).Msg("unknown driver; using SIM")
		return fake.New()
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	})
}
