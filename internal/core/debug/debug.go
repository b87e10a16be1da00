// Package debug holds the optional diagnostics: a pprof and Prometheus HTTP
// endpoint, connection metrics, and frame dumps for packet logging.
package debug

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// StartUtilities starts an HTTP server on localhost:port serving the default
// pprof handlers under /debug/pprof/ and the process metrics under /metrics.
// The server is shut down when ctx is cancelled.
func StartUtilities(ctx context.Context, logger logrus.FieldLogger, port int) {
	mux := http.NewServeMux()
	// The pprof handlers register themselves on the default mux.
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Infof("starting debug server on %s", server.Addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("error starting debug server: %s", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// DumpFrame logs the bytes of a frame at debug level. source names the side
// that sent it ("client" or "server").
func DumpFrame(logger logrus.FieldLogger, source string, data []byte) {
	logger.Debugf("%s frame (%d bytes):\n%s", source, len(data), dumpConfig.Sdump(data))
}
