package util

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MonitorServer serves the HTTP endpoints of the service. Routes live on its
// own router, so a restart keeps them.
type MonitorServer struct {
	router   chi.Router
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
	// Addr overrides the details_port setting when set.
	Addr string
	mu   sync.Mutex
}

func NewMonitorServer() *MonitorServer {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	return &MonitorServer{router: r}
}

func (s *MonitorServer) Handler() http.Handler {
	return s.router
}

func (s *MonitorServer) Router() chi.Router {
	return s.router
}

func (s *MonitorServer) AddHandler(path string, handler func(http.ResponseWriter, *http.Request)) {
	s.router.HandleFunc(path, handler)
}

func (s *MonitorServer) AddRawHandler(path string, handler http.Handler) {
	s.router.Handle(path, handler)
}

func (s *MonitorServer) listenAddr() string {
	if s.Addr != "" {
		return s.Addr
	}
	return fmt.Sprintf(":%d", Config.GetInt("details_port"))
}

// Start binds the listen address and serves in the background.
func (s *MonitorServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return fmt.Errorf("already running")
	}

	ln, err := net.Listen("tcp", s.listenAddr())
	if err != nil {
		return fmt.Errorf("monitor server listen: %w", err)
	}
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	done := make(chan struct{})
	s.srv, s.listener, s.done = srv, ln, done

	go func() {
		defer close(done)
		Logger.Info().Msgf("monitor server listening on %s", ln.Addr())
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			Logger.Warn().Msgf("Problem running monitor server: %v", err)
		}
		Logger.Debug().Msg("monitor server shutdown")
	}()
	return nil
}

// BoundAddr is the address the running server listens on, or "".
func (s *MonitorServer) BoundAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *MonitorServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv, s.listener, s.done = nil, nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	<-done
	return err
}

func (s *MonitorServer) Restart() {
	Logger.Debug().Msg("restarting monitor server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		Logger.Error().Msgf("Error shutting down monitor server: %v", err)
	}
	if err := s.Start(); err != nil {
		Logger.Error().Msgf("Error starting monitor server: %v", err)
	}
}
