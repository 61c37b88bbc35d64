// Package server exposes the prospect store over HTTP.
//
// Routes:
//
//	POST /v1/batches          process one candidate batch message (202, 400, 413, 500)
//	POST /v1/sweeps           run one retention sweep over a partition (200, 400, 500)
//	GET  /v1/candidates/:id   return one record (200, 404)
//	GET  /health              liveness
//	GET  /ready               readiness, runs every registered health check
//	GET  /version             build information
//	GET  /metrics             Prometheus exposition
//
// Every request gets an X-Request-ID, a server span that continues the
// caller's W3C trace context, request metrics labelled by route template and
// one log line.
//
// Example:
//
//	srv, err := server.New(&cfg.Server, &cfg.Telemetry, server.Dependencies{
//	    Records:   st,
//	    Processor: processor,
//	    Sweeper:   sweeper,
//	    Checker:   checker,
//	    Metrics:   collector,
//	})
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx)
package server
