// Package health implements liveness and readiness checks.
//
// Liveness only reports that the process runs. Readiness runs every
// registered component check, each bounded by the configured check timeout:
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("storage", health.PingCheck(backend))
//
// The readiness endpoint answers 503 while any component is unhealthy so
// that load balancers stop routing candidate batches to the instance.
package health
