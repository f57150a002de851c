// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rest

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics serves the metrics gathered by g in the Prometheus exposition
// format at GET /metrics.
func Metrics(g prometheus.Gatherer) ApiOption {
	return apiOptionFunc(func(ao *ApiOptions) {
		ao.mux.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	})
}
