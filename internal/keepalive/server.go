// Package keepalive exposes a tiny HTTP surface so hosting platforms that
// ping a web port keep the bot process alive.
package keepalive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

type Server struct {
	port      string
	startTime time.Time
}

func New(port string) *Server {
	return &Server{port: port, startTime: time.Now()}
}

func (ka *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", ka.handleIndex)
	mux.HandleFunc("/health", ka.handleHealth)
	return mux
}

// Run serves until ctx is cancelled.
func (ka *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", ka.port),
		Handler:     ka.Handler(),
		ReadTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("keepalive listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (ka *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	io.WriteString(w, "Metrobot is running.")
}

func (ka *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"uptime": time.Since(ka.startTime).Truncate(time.Second).String(),
	})
	if err != nil {
		slog.Error("encode health response", "err", err)
	}
}
