package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"third-strike/internal/api"
	"third-strike/internal/chardef"
	"third-strike/internal/config"
	"third-strike/internal/game"
	"third-strike/internal/logger"
)

// libraryHolder serves the current character library to the API while the
// watcher swaps in reloaded ones.
type libraryHolder struct {
	lib atomic.Pointer[chardef.Library]
}

func (h *libraryHolder) Names() []string { return h.lib.Load().Names() }

func (h *libraryHolder) Get(name string) (*chardef.Character, bool) {
	return h.lib.Load().Get(name)
}

func main() {
	// Load .env file from parent directory
	envErr := godotenv.Load("../.env")
	if envErr != nil {
		// Try current directory as fallback
		envErr = godotenv.Load(".env")
	}

	appConfig := config.Load()
	log := logger.New(appConfig.Log)
	if envErr != nil {
		log.Debug("no .env file found, using environment variables only")
	}

	log.WithFields(logrus.Fields{
		"tps":      appConfig.Sim.TickRate,
		"timer":    appConfig.Round.TimerStart,
		"rounds":   appConfig.Round.RoundsToWin,
		"player1":  appConfig.Data.Player1,
		"player2":  appConfig.Data.Player2,
		"charDir":  appConfig.Data.CharacterDir,
		"watching": appConfig.Data.Watch,
	}).Info("third strike engine starting")

	lib, err := loadLibrary(appConfig.Data)
	if err != nil {
		log.WithError(err).Fatal("failed to load character definitions")
	}
	holder := &libraryHolder{}
	holder.lib.Store(lib)

	telemetry := api.Telemetry{}
	match, err := newMatch(appConfig, lib, log, telemetry)
	if err != nil {
		log.WithError(err).Fatal("failed to build match")
	}

	// Start event log
	eventLog := game.NewEventLog(log)
	if err := eventLog.Start(appConfig.Server.EventLogPath); err != nil {
		log.WithError(err).Warn("event log disabled")
	} else if appConfig.Server.EventLogPath != "" {
		log.WithField("path", appConfig.Server.EventLogPath).Info("event log started")
	}

	standings := game.NewStandings()
	engine := game.NewEngine(match, game.EngineOptions{
		TickRate:  appConfig.Sim.TickRate,
		Log:       log,
		EventLog:  eventLog,
		Standings: standings,
	})

	var sessions *api.SessionManager
	if appConfig.Server.ControlToken != "" {
		sessions = api.NewSessionManager(appConfig.Server.ControlToken, log)
		log.Info("control sessions enabled")
	} else {
		log.Warn("CONTROL_TOKEN not set: match input and reset are open to any client")
	}

	server := api.NewServer(api.ServerOptions{
		Engine:     engine,
		Characters: holder,
		Standings:  standings,
		EventLog:   eventLog,
		Sessions:   sessions,
		RateLimit: api.RateLimitConfig{
			RequestsPerSecond: appConfig.Server.RequestsPerSecond,
			Burst:             appConfig.Server.Burst,
			CleanupInterval:   api.DefaultRateLimitConfig.CleanupInterval,
		},
		Origins: appConfig.Server.AllowedOrigins,
		Log:     log,
	})

	debugServer := api.StartDebugServer(appConfig.Observability, log)

	var watcher *chardef.Watcher
	if appConfig.Data.Watch && appConfig.Data.CharacterDir != "" {
		watcher, err = chardef.NewWatcher(appConfig.Data.CharacterDir)
		if err != nil {
			log.WithError(err).Warn("character hot reload disabled")
		} else {
			go watchCharacters(watcher, appConfig, holder, engine, log, telemetry)
		}
	}

	// Start game engine
	engine.Start()

	// Start API server in goroutine
	go func() {
		addr := ":" + strconv.Itoa(appConfig.Server.Port)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if watcher != nil {
		watcher.Close()
	}
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("api server shutdown")
	}
	engine.Stop()
	eventLog.Stop()
	if sessions != nil {
		sessions.Stop()
	}
	if debugServer != nil {
		debugServer.Shutdown(ctx)
	}
	log.Info("goodbye")
}

func loadLibrary(cfg config.DataConfig) (*chardef.Library, error) {
	if cfg.CharacterDir == "" {
		return chardef.LoadEmbedded()
	}
	lib, err := chardef.LoadDir(cfg.CharacterDir)
	return lib, errors.Wrapf(err, "load %s", cfg.CharacterDir)
}

func newMatch(cfg config.AppConfig, lib *chardef.Library, log logrus.FieldLogger, tel game.Telemetry) (*game.Match, error) {
	var chars [2]*chardef.Character
	for i, name := range []string{cfg.Data.Player1, cfg.Data.Player2} {
		c, ok := lib.Get(name)
		if !ok {
			return nil, errors.Errorf("unknown character %q (have %v)", name, lib.Names())
		}
		chars[i] = c
	}
	return game.NewMatch(cfg.Sim, cfg.Round, chars, game.Options{Log: log, Telemetry: tel}), nil
}

// watchCharacters reloads the library on every change and restarts the
// match with the new data. A broken file keeps the previous library.
func watchCharacters(w *chardef.Watcher, cfg config.AppConfig, holder *libraryHolder, engine *game.Engine, log logrus.FieldLogger, tel game.Telemetry) {
	for {
		select {
		case path, ok := <-w.Events:
			if !ok {
				return
			}
			lib, err := loadLibrary(cfg.Data)
			if err != nil {
				log.WithError(err).WithField("file", path).Warn("character reload failed, keeping previous data")
				continue
			}
			match, err := newMatch(cfg, lib, log, tel)
			if err != nil {
				log.WithError(err).WithField("file", path).Warn("character reload failed, keeping previous data")
				continue
			}
			holder.lib.Store(lib)
			engine.Replace(match)
			log.WithField("file", path).Info("character definitions reloaded")

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("character watcher error")
		}
	}
}
