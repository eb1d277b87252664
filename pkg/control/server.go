// Package control exposes the run/stop HTTP API.
package control

import (
    "context"
    "errors"
    "net"
    "net/http"
    "time"

    "github.com/PR-DC/JSLAB-sub002/pkg/observability"
    "github.com/PR-DC/JSLAB-sub002/pkg/script"
    "github.com/PR-DC/JSLAB-sub002/pkg/scripts"
    "github.com/gin-contrib/cors"
    "github.com/gin-gonic/gin"
    "go.uber.org/zap"
)

// Server serves the control API for one runner.
type Server struct {
    runner  *script.Runner
    catalog *scripts.Catalog
    reports *observability.Reporter
    log     *zap.Logger
    engine  *gin.Engine

    // runs outlive the request that started them
    base context.Context
}

// Options configures New.
type Options struct {
    Runner  *script.Runner
    Catalog *scripts.Catalog
    Reports *observability.Reporter
    Logger  *zap.Logger
    // AllowedOrigins for CORS; empty allows any origin.
    AllowedOrigins []string
    // Base is the parent context of runs started through the API.
    Base context.Context
}

// New builds the API handler.
func New(o Options) *Server {
    if o.Logger == nil { o.Logger = zap.L() }
    if o.Base == nil { o.Base = context.Background() }
    s := &Server{runner: o.Runner, catalog: o.Catalog, reports: o.Reports, log: o.Logger, base: o.Base}

    r := gin.New()
    r.Use(gin.Recovery())
    cc := cors.Config{
        AllowMethods:  []string{"GET", "POST", "OPTIONS"},
        AllowHeaders:  []string{"Origin", "Content-Type"},
        ExposeHeaders: []string{"Content-Length"},
        MaxAge:        time.Hour,
    }
    if len(o.AllowedOrigins) == 0 {
        cc.AllowAllOrigins = true
    } else {
        cc.AllowOrigins = o.AllowedOrigins
    }
    r.Use(cors.New(cc))
    r.Use(accessLog(o.Logger))

    v1 := r.Group("/v1")
    v1.GET("/status", s.status)
    v1.GET("/scripts", s.listScripts)
    v1.GET("/runs", s.listRuns)
    v1.POST("/runs", s.startRun)
    v1.POST("/stop", s.stop)
    v1.GET("/reports", s.listReports)
    s.engine = r
    return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
    ln, err := net.Listen("tcp", addr)
    if err != nil { return err }
    srv := &http.Server{Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}
    errCh := make(chan error, 1)
    go func() { errCh <- srv.Serve(ln) }()
    s.log.Info("control api listening", zap.Stringer("addr", ln.Addr()))
    select {
    case err := <-errCh:
        return err
    case <-ctx.Done():
    }
    shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := srv.Shutdown(shutCtx); err != nil { return err }
    if err := <-errCh; !errors.Is(err, http.ErrServerClosed) { return err }
    return nil
}

// accessLog logs one line per request through zap.
func accessLog(log *zap.Logger) gin.HandlerFunc {
    return func(c *gin.Context) {
        start := time.Now()
        c.Next()
        log.Debug("http request",
            zap.String("method", c.Request.Method),
            zap.String("path", c.Request.URL.Path),
            zap.Int("status", c.Writer.Status()),
            zap.Duration("latency", time.Since(start)))
    }
}
