// Package metrics exposes Prometheus counters for the transport and the
// renderers. The collectors are process-wide; Handler serves them when the
// debug listener is enabled.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Connects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helixscreen_ws_connects_total",
		Help: "Successful WebSocket opens.",
	})
	Disconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helixscreen_ws_disconnects_total",
		Help: "WebSocket closes, clean or not.",
	})
	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helixscreen_ws_reconnect_attempts_total",
		Help: "Scheduled reconnect attempts.",
	})
	RPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helixscreen_rpc_requests_total",
		Help: "JSON-RPC requests sent, by method.",
	}, []string{"method"})
	RPCErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helixscreen_rpc_errors_total",
		Help: "JSON-RPC error replies, by error kind.",
	}, []string{"kind"})
	RPCTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helixscreen_rpc_timeouts_total",
		Help: "Requests failed by the timeout sweep.",
	})
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helixscreen_notifications_total",
		Help: "Server notifications received, by method.",
	}, []string{"method"})
	BadFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helixscreen_bad_frames_total",
		Help: "Frames dropped because they could not be parsed.",
	})
	SegmentsRendered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helixscreen_render_segments_total",
		Help: "Toolpath segments drawn.",
	})
	SegmentsCulled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helixscreen_render_culled_total",
		Help: "Toolpath segments rejected by frustum or viewport clipping.",
	})
)

// Handler returns the /metrics handler for the debug listener.
func Handler() http.Handler {
	return promhttp.Handler()
}
