// Package metrics는 프로메테우스 지표를 정의합니다.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chartdesk_fetch_total", Help: "Refresh fetches by stream and result"},
		[]string{"stream", "result"},
	)
	FetchInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "chartdesk_fetch_in_flight", Help: "Fetches currently running per stream"},
		[]string{"stream"},
	)
	StaleDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chartdesk_stale_results_total", Help: "Results discarded because the selection changed"},
		[]string{"stream"},
	)
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chartdesk_ticks_total", Help: "Valid price ticks received from the stream"},
		[]string{"symbol"},
	)
	DroppedMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chartdesk_stream_dropped_total", Help: "Stream messages discarded by reason"},
		[]string{"reason"},
	)
	Reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "chartdesk_stream_reconnects_total", Help: "Stream reconnect attempts"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chartdesk_orders_total", Help: "Orders submitted"},
		[]string{"symbol", "side", "result"},
	)
	ExchangeCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "chartdesk_exchange_calls_total", Help: "Exchange API calls by operation and result"},
		[]string{"op", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		FetchTotal,
		FetchInFlight,
		StaleDiscarded,
		TicksTotal,
		DroppedMessages,
		Reconnects,
		OrdersTotal,
		ExchangeCalls,
	)
}

// Result는 지표 라벨용 결과 문자열입니다
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Serve는 /metrics 엔드포인트를 백그라운드로 제공합니다
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
