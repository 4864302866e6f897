package telemetry

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

func metricsRouter() *router.Router {
	r := router.New()
	r.Handle(http.MethodGet, "/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))
	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})
	return r
}

// ServeMetrics exposes the prometheus registry on address until ctx is done.
func ServeMetrics(ctx context.Context, address string) error {
	log := slog.With("component", "metrics-server")

	server := &fasthttp.Server{
		ReadTimeout: time.Second,
		Handler:     metricsRouter().Handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "metrics server listening", "address", address)
		errCh <- server.ListenAndServe(address)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		log.ErrorContext(shutdownCtx, "metrics server shutdown failed", "error", err.Error())
		return err
	}
	return nil
}
