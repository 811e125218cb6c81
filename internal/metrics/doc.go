/*
Package metrics provides Prometheus metrics for the artifact caches.

The collector observes both cache tiers from the outside: request outcomes
and origin fetch timings are recorded by the HTTP handler, and the gauge
families are refreshed from the caches' own stats snapshots. The caches
themselves carry no metrics dependencies.

The collector serves its registry over HTTP:

	collector, _ := metrics.NewCollector(cfg)
	_ = collector.Start(ctx)
	defer collector.Stop(ctx)
*/
package metrics
