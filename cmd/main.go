package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	transport "roomcore/infrastructure/http"
	"roomcore/internal"
	"roomcore/moderation"
	"roomcore/observability"
	"roomcore/realtime"
	"roomcore/repositories"
	"roomcore/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so every defer (database close, index close)
// executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Full-text index (bluge)
	indexWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = indexWriter.Close()
	}()

	// 4. Repositories & moderation
	roomRepository := repositories.NewRoomRepository(db, log)
	messageRepository := repositories.NewMessageRepository(db, log)
	searchRepository := repositories.NewSearchRepository(indexWriter, log)
	mediaRepository := repositories.NewMediaRepository(db, log, config.MaxMediaBytes)

	replacement, err := config.ReplacementRune()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	censor, err := moderation.NewCensor(config.WordList(), replacement)
	if err != nil {
		return fmt.Errorf("censor setup failed: %w", err)
	}

	// 5. Fan-out & services
	monitor := observability.NewMonitor(log)
	if config.DebugPort > 0 {
		internal.StartDebugServer(db, config.DebugPort, internal.RoomMapper, func() map[string]any {
			snap := monitor.Snapshot()
			return map[string]any{
				"rooms_created":  snap.RoomsCreated,
				"messages_sent":  snap.MessagesSent,
				"open_sessions":  snap.OpenSessions,
				"events_dropped": snap.EventsDropped,
			}
		}, log)
	}
	registry := realtime.NewRegistry()
	fanout := realtime.NewFanout(log, registry, config.SinkTimeout).
		WithCounters(monitor.EventsDelivered, monitor.EventsDropped)

	members := services.NewMembershipManager(roomRepository, messageRepository, searchRepository, fanout, log)
	moderationEngine := services.NewModerationEngine(roomRepository, fanout, log)
	invites := services.NewInviteLinkService(roomRepository, fanout, config.BaseURL, log)
	bus := services.NewMessageBus(roomRepository, messageRepository, searchRepository,
		mediaRepository, censor, fanout, log, config.MaxContentLength)

	// 6. HTTP server
	handler := &transport.Handler{
		Members:    members,
		Moderation: moderationEngine,
		Invites:    invites,
		Bus:        bus,
		Media:      mediaRepository,
		Registry:   registry,
		Monitor:    monitor,
		Log:        log,
	}
	router := transport.NewRouter(handler, []byte(config.JWTSecret))

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("forced shutdown", "error", err)
	}
	log.Info("Program stopped cleanly")

	return nil
}
