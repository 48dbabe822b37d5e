// Package server 提供本地 HTTP 入口：健康检查、Prometheus 指标与 Web 聊天路由。
// Package server exposes the local HTTP surface: health, Prometheus metrics and the web chat routes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"assistant/internal/channel"
	"assistant/internal/channel/webchat"
	"assistant/internal/metrics"
	"assistant/internal/mode"

	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// SnapshotSource 提供模式快照
// SnapshotSource yields the current mode snapshot
type SnapshotSource interface {
	Snapshot() mode.Snapshot
}

type Options struct {
	Addr    string
	Modes   SnapshotSource
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// Server 作为一个渠道运行，与其他输入源一起受 bootstrap 管理
// Server runs as a channel source alongside the other inputs
type Server struct {
	opts    Options
	logger  zerolog.Logger
	started time.Time
	ready   chan net.Addr
}

func New(opts Options) *Server {
	return &Server{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "server").Logger(),
		ready:  make(chan net.Addr, 1),
	}
}

func (s *Server) Name() string { return "web" }

// Ready 在监听成功后收到实际地址
// Ready delivers the bound address once the listener is up
func (s *Server) Ready() <-chan net.Addr { return s.ready }

// Handler 构建路由；webchat 路由使用 sub 提交输入
// Handler builds the routes; the web chat routes submit through sub
func (s *Server) Handler(sub channel.Submitter) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.serveHealth)
	mux.Handle("GET /metrics", s.opts.Metrics.Handler())
	if sub != nil {
		webchat.New(sub, s.opts.Logger).Register(mux)
	}
	return mux
}

// Run 监听并服务直到 ctx 结束，然后优雅关闭
// Run serves until ctx ends, then shuts down gracefully
func (s *Server) Run(ctx context.Context, sub channel.Submitter) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	s.started = time.Now()
	srv := &http.Server{
		Handler:           s.Handler(sub),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
	s.ready <- ln.Addr()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		<-errCh
		return nil
	}
}

type backendHealth struct {
	Kind      string `json:"kind"`
	Model     string `json:"model"`
	Health    string `json:"health"`
	LastError string `json:"last_error,omitempty"`
}

type healthResponse struct {
	Status  string          `json:"status"`
	Mode    string          `json:"mode,omitempty"`
	Uptime  string          `json:"uptime,omitempty"`
	Backend []backendHealth `json:"backends,omitempty"`
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if !s.started.IsZero() {
		resp.Uptime = time.Since(s.started).Truncate(time.Second).String()
	}
	if s.opts.Modes != nil {
		snap := s.opts.Modes.Snapshot()
		resp.Mode = snap.Current.ModeName()
		for _, h := range []mode.Handle{snap.Remote, snap.Local} {
			resp.Backend = append(resp.Backend, backendHealth{
				Kind:      h.Kind.String(),
				Model:     h.Model,
				Health:    h.Health.String(),
				LastError: h.LastError,
			})
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
