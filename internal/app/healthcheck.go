package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vk/stagegrid/internal/ctxlog"
)

// healthStatus is the body served on /health.
type healthStatus struct {
	Status string  `json:"status"`
	Run    string  `json:"run"`
	State  string  `json:"state"`
	Seq    uint64  `json:"seq"`
	Nodes  int     `json:"nodes"`
	Views  int     `json:"views"`
	Frame  *uint64 `json:"frame"`
}

func (a *App) health() healthStatus {
	st := a.sched.Store().Status()
	h := healthStatus{
		Status: "OK",
		Run:    a.runID,
		State:  st.State.String(),
		Seq:    st.Seq,
		Nodes:  st.Nodes,
		Views:  a.dir.Len(),
	}
	if frame, ok := a.sched.LastFrame(); ok {
		h.Frame = &frame
	}
	return h
}

// healthHandler reports the schedule store's state and the last frame ticked.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(a.health()); err != nil {
		a.logger.Error("Failed to write health response.", "error", err)
	}
}

// startHealthcheckServer initializes and runs the health check HTTP server.
func (a *App) startHealthcheckServer(ctx context.Context, port int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Configuring health check server.")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)

	addr := fmt.Sprintf(":%d", port)
	a.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://localhost%s/health", addr))
		// ListenAndServe returns ErrServerClosed on graceful shutdown.
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health check server failed unexpectedly", "error", err)
		}
	}()
}

func (a *App) closeHealthcheckServer(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	if a.httpServer == nil {
		logger.Debug("Health check server was not running.")
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	logger.Info("🩺 Shutting down health check server...")
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Health check server shutdown failed", "error", err)
		return
	}
	logger.Debug("Health check server shut down gracefully.")
}
