package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/callbridge/internal/adapters/engine/sim"
	router "github.com/dkeye/callbridge/internal/adapters/http"
	"github.com/dkeye/callbridge/internal/adapters/mqtt"
	"github.com/dkeye/callbridge/internal/adapters/permission"
	"github.com/dkeye/callbridge/internal/adapters/rtc"
	wssignal "github.com/dkeye/callbridge/internal/adapters/signal"
	"github.com/dkeye/callbridge/internal/app"
	"github.com/dkeye/callbridge/internal/app/bridge"
	"github.com/dkeye/callbridge/internal/app/media"
	"github.com/dkeye/callbridge/internal/app/orch"
	"github.com/dkeye/callbridge/internal/app/placement"
	"github.com/dkeye/callbridge/internal/config"
	"github.com/dkeye/callbridge/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	admission, err := app.ParseAdmission(cfg.Admission)
	if err != nil {
		log.Fatal().Err(err).Msg("bad admission policy")
	}

	var eng *sim.Engine
	switch cfg.Engine.Kind {
	case "sim":
		eng = sim.New(cfg.Engine.Sim)
	default:
		log.Fatal().Str("engine", cfg.Engine.Kind).Msg("unsupported engine")
	}

	events := bridge.New()
	binder := media.NewBinder(media.NewRegistry())
	view, local, remote, err := rtc.NewView("main")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create render surfaces")
	}
	binder.AttachView(view)
	defer local.Close()
	defer remote.Close()

	o := orch.New(orch.Options{
		Engine:    eng,
		Bridge:    events,
		Media:     binder,
		Gate:      permission.NewStaticGate(cfg.Permissions),
		Policy:    app.SimplePolicy{Admission: admission},
		Phone:     cfg.Phone,
		Timeouts:  cfg.Timeouts,
		QueueSize: cfg.EventsBuffer,
	})
	go func() {
		if err := o.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("orchestrator stopped")
		}
	}()

	if cfg.MQTT.Enabled {
		emitter := mqtt.NewEmitter(cfg.MQTT)
		if err := emitter.Connect(ctx); err != nil {
			log.Error().Err(err).Msg("mqtt unavailable, events stay local")
		}
		if err := emitter.Attach(events); err != nil {
			log.Error().Err(err).Msg("mqtt attach")
		}
		go emitter.Run(ctx)
		defer emitter.Disconnect()
	}

	if cfg.Mode == "debug" {
		go pumpSimMedia(ctx, events, eng)
	}

	ctl := wssignal.NewSignalWSController(o, placement.NewController(cfg.Placement), wssignal.Options{
		SendBuffer: cfg.SendBuffer,
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		ICE:        rtc.ConfigFromURLs(cfg.ICEServers),
		Surfaces:   []*rtc.TrackSurface{local, remote},
	})

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch:    o,
		Signal:  ctl,
		Sim:     eng,
		Limiter: router.NewAuthRateLimiter(cfg.AuthRate.Limit, cfg.AuthRate.Interval),
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("CallBridge server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

// pumpSimMedia feeds synthetic RTP into the surfaces while a simulated call
// is connected, so viewers have something to render in debug runs.
func pumpSimMedia(ctx context.Context, events *bridge.Bridge, eng *sim.Engine) {
	var (
		mu   sync.Mutex
		stop context.CancelFunc
	)
	halt := func() {
		mu.Lock()
		defer mu.Unlock()
		if stop != nil {
			stop()
			stop = nil
		}
	}

	sub, err := events.Subscribe(bridge.CallStatusChange, func(ev bridge.Event) {
		p, ok := ev.Payload.(bridge.StatusPayload)
		if !ok {
			return
		}
		switch p.Status {
		case domain.StatusConnected:
			call, err := eng.Last()
			if err != nil {
				return
			}
			halt()
			mu.Lock()
			pctx, pcancel := context.WithCancel(ctx)
			stop = pcancel
			mu.Unlock()
			go call.Pump(pctx, 33*time.Millisecond)
		case domain.StatusDisconnected, domain.StatusFailed:
			halt()
		}
	})
	if err != nil {
		log.Error().Err(err).Msg("sim media pump")
		return
	}
	<-ctx.Done()
	sub.Remove()
	halt()
}
