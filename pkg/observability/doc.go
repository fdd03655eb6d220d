/*
Package observability turns engine lifecycle hooks into logs and Prometheus metrics.

Hooks compose with Chain, so a single engine can feed both:

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	hooks := observability.Chain(observability.LogHooks(logger), metrics.Hooks())
*/
package observability
