package server

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/beatwave/dashsync/internal/config"
	"github.com/beatwave/dashsync/internal/logger"
)

type server struct {
	httpServer *httpServer
	logger     *logger.Logger

	// onShutdown hooks close the registry, stop background sweeps, and
	// release anything else the binary wired in. They run after the HTTP
	// listener has drained.
	onShutdown []func()
}

// NewServer builds the transport server around the given handler. The
// onShutdown hooks run, in order, during graceful shutdown.
func NewServer(handler http.Handler, cfg config.Server, log *logger.Logger, onShutdown ...func()) (Server, error) {
	log.Info().Msg("creating new server...")

	if cfg.HTTPAddress == "" {
		return nil, errNoServersAreCreated
	}

	return &server{
		httpServer: newHTTPServer(handler, cfg, log),
		logger:     log,
		onShutdown: onShutdown,
	}, nil
}

func (s *server) RunServer() {
	if err := s.run(); err != nil {
		s.logger.Info().Msgf("Error running server: %v \n", err)
	}
}

func (s *server) Shutdown() {
	if s.httpServer != nil {
		s.httpServer.Shutdown()
	}

	for _, hook := range s.onShutdown {
		hook()
	}
}

func (s *server) run() error {
	idleConnectionsClosed := make(chan struct{})
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGQUIT,
	)
	defer stop()

	// listen for stop signals
	go func() {
		<-ctx.Done()

		s.Shutdown()

		close(idleConnectionsClosed)
	}()

	s.logger.Info().Str("address", s.httpServer.server.Addr).Msg("Launching HTTP server")
	go s.httpServer.RunServer()

	<-idleConnectionsClosed
	s.logger.Info().Msg("server Shutdown gracefully")

	return nil
}
