// Package metrics records netconf client activity as Prometheus metrics, using
// the client trace hooks.
package metrics

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/ssh"

	"github.com/damianoneill/ncclient/netconf/client"
	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/rpc"
)

const namespace = "netconf_client"

// Outcome label values.
const (
	OutcomeOK           = "ok"
	OutcomeRPCError     = "rpc-error"
	OutcomeChannel      = "channel"
	OutcomeFraming      = "framing"
	OutcomeNegotiation  = "negotiation"
	OutcomeClosed       = "closed"
	OutcomeOther        = "other"
	notificationDropped = "dropped"
	notificationRouted  = "received"
)

// Collector holds the metrics maintained by the hooks it delivers.
type Collector struct {
	rpcs          *prometheus.CounterVec
	rpcDuration   *prometheus.HistogramVec
	connects      *prometheus.CounterVec
	connectTime   prometheus.Histogram
	openSessions  prometheus.Gauge
	bytesRead     prometheus.Counter
	bytesWritten  prometheus.Counter
	notifications *prometheus.CounterVec

	once  sync.Once
	hooks *client.ClientTrace
}

// NewCollector creates the client metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		rpcs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpcs_total",
			Help:      "RPC requests executed, by operation and outcome.",
		}, []string{"rpc", "outcome"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "Time from sending an RPC request to receiving its reply.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"rpc"}),
		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "Transport connection attempts, by outcome.",
		}, []string{"outcome"}),
		connectTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dial_duration_seconds",
			Help:      "Time taken to establish a transport connection.",
			Buckets:   prometheus.DefBuckets,
		}),
		openSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_sessions",
			Help:      "Sessions currently open.",
		}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_bytes_total",
			Help:      "Bytes read from transports.",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "written_bytes_total",
			Help:      "Bytes written to transports.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications received for a subscription, and those dropped, by event.",
		}, []string{"event", "disposition"}),
	}

	for _, m := range []prometheus.Collector{
		c.rpcs, c.rpcDuration, c.connects, c.connectTime, c.openSessions, c.bytesRead, c.bytesWritten, c.notifications,
	} {
		if err := reg.Register(m); err != nil {
			return nil, errors.Wrap(err, "failed to register netconf client metrics")
		}
	}
	return c, nil
}

// PrometheusHooks delivers trace hooks recording client metrics registered with reg.
func PrometheusHooks(reg prometheus.Registerer) (*client.ClientTrace, error) {
	c, err := NewCollector(reg)
	if err != nil {
		return nil, err
	}
	return c.Hooks(), nil
}

// Hooks delivers the trace hooks that maintain the collector's metrics.
func (c *Collector) Hooks() *client.ClientTrace {
	c.once.Do(func() {
		c.hooks = &client.ClientTrace{
			ConnectDone: func(target string, err error, d time.Duration) {
				c.connects.WithLabelValues(Outcome(err)).Inc()
			},
			DialDone: func(clientConfig *ssh.ClientConfig, target string, err error, d time.Duration) {
				if err == nil {
					c.connectTime.Observe(d.Seconds())
				}
			},
			StateChange: func(ref string, from, to client.State) {
				switch {
				case to == client.StateOpen:
					c.openSessions.Inc()
				case from == client.StateOpen:
					c.openSessions.Dec()
				}
			},
			ReadDone: func(p []byte, n int, err error, d time.Duration) {
				c.bytesRead.Add(float64(n))
			},
			WriteDone: func(p []byte, n int, err error, d time.Duration) {
				c.bytesWritten.Add(float64(n))
			},
			NotificationReceived: func(n *common.Notification) {
				c.notifications.WithLabelValues(n.Name, notificationRouted).Inc()
			},
			NotificationDropped: func(n *common.Notification) {
				c.notifications.WithLabelValues(n.Name, notificationDropped).Inc()
			},
			ExecuteDone: func(ref string, req *rpc.Request, messageID string, res *common.Reply, err error, d time.Duration) {
				c.rpcs.WithLabelValues(req.Name, Outcome(err)).Inc()
				if res != nil {
					c.rpcDuration.WithLabelValues(req.Name).Observe(d.Seconds())
				}
			},
		}
	})
	return c.hooks
}

// Outcome delivers the outcome label value for err.
func Outcome(err error) string {
	var (
		oe *common.OperationError
		ce *common.ChannelError
		fe *common.FramingError
		ne *common.NegotiationError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &oe):
		return OutcomeRPCError
	case errors.As(err, &fe):
		return OutcomeFraming
	case errors.As(err, &ne):
		return OutcomeNegotiation
	case errors.As(err, &ce):
		return OutcomeChannel
	case errors.Is(err, common.ErrSessionClosed):
		return OutcomeClosed
	default:
		return OutcomeOther
	}
}
