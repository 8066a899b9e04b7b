// Package metrics wires optional Prometheus instrumentation for the
// agent and media session, following the teacher's pkg/dialog/metrics.go
// and pkg/rtp/metrics_collector.go: a handful of counters/gauges the
// core updates unconditionally, backed by a nil-safe registry so a host
// that never configures Prometheus pays nothing but a few no-op calls.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the metrics this module exposes. A zero-value
// Registry (as returned by NoOp) is safe to call into; every method
// checks for nil collectors before touching them.
type Registry struct {
	registerAttempts *prometheus.CounterVec // labels: result
	dialogState      *prometheus.GaugeVec   // labels: state
	rtpPacketsSent   prometheus.Counter
	rtpPacketsRecv   prometheus.Counter
	rtpBytesSent     prometheus.Counter
	rtpBytesRecv     prometheus.Counter
	rtcpReportsSent  prometheus.Counter
}

// New creates and registers the collectors on reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer in a host process.
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		registerAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ua_register_attempts_total",
			Help: "SIP REGISTER attempts by result.",
		}, []string{"result"}),
		dialogState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ua_dialogs_in_state",
			Help: "Current number of dialogs in each state.",
		}, []string{"state"}),
		rtpPacketsSent:  prometheus.NewCounter(prometheus.CounterOpts{Name: "ua_rtp_packets_sent_total"}),
		rtpPacketsRecv:  prometheus.NewCounter(prometheus.CounterOpts{Name: "ua_rtp_packets_received_total"}),
		rtpBytesSent:    prometheus.NewCounter(prometheus.CounterOpts{Name: "ua_rtp_bytes_sent_total"}),
		rtpBytesRecv:    prometheus.NewCounter(prometheus.CounterOpts{Name: "ua_rtp_bytes_received_total"}),
		rtcpReportsSent: prometheus.NewCounter(prometheus.CounterOpts{Name: "ua_rtcp_reports_sent_total"}),
	}
	if reg != nil {
		reg.MustRegister(m.registerAttempts, m.dialogState, m.rtpPacketsSent, m.rtpPacketsRecv,
			m.rtpBytesSent, m.rtpBytesRecv, m.rtcpReportsSent)
	}
	return m
}

// NoOp returns a Registry whose methods are safe to call but record
// nothing, for hosts that don't configure Prometheus.
func NoOp() *Registry { return &Registry{} }

func (m *Registry) RegisterAttempt(result string) {
	if m == nil || m.registerAttempts == nil {
		return
	}
	m.registerAttempts.WithLabelValues(result).Inc()
}

func (m *Registry) SetDialogsInState(state string, n float64) {
	if m == nil || m.dialogState == nil {
		return
	}
	m.dialogState.WithLabelValues(state).Set(n)
}

func (m *Registry) AddRTPSent(packets, bytes int) {
	if m == nil || m.rtpPacketsSent == nil {
		return
	}
	m.rtpPacketsSent.Add(float64(packets))
	m.rtpBytesSent.Add(float64(bytes))
}

func (m *Registry) AddRTPReceived(packets, bytes int) {
	if m == nil || m.rtpPacketsRecv == nil {
		return
	}
	m.rtpPacketsRecv.Add(float64(packets))
	m.rtpBytesRecv.Add(float64(bytes))
}

func (m *Registry) IncRTCPSent() {
	if m == nil || m.rtcpReportsSent == nil {
		return
	}
	m.rtcpReportsSent.Inc()
}
