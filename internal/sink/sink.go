// Package sink provides NotificationSink implementations for the
// pcie-monitor harness. The spec treats the sink as an external
// collaborator assumed thread-safe by the host contract (§5); LogSink is
// the reference implementation a standalone binary uses in place of a
// real host monitoring framework.
package sink

import (
	log "github.com/sirupsen/logrus"

	"pcie-monitor/pkg/pcie"
)

// LogSink logs every notification as a structured logrus entry, in the
// manner of the teacher's pkg/logger.go WithFields wrapper.
type LogSink struct {
	Logger *log.Logger
}

// NewLogSink returns a LogSink writing through logger, or logrus's
// standard logger if logger is nil.
func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &LogSink{Logger: logger}
}

// Dispatch renders n as one structured log line at a level matching its
// severity (§7: notifications are fire-and-forget, no delivery
// confirmation is awaited).
func (s *LogSink) Dispatch(n pcie.Notification) {
	entry := s.Logger.WithFields(log.Fields{
		"host":            n.Host,
		"plugin":          n.Plugin,
		"type":            n.Type,
		"plugin_instance": n.PluginInstance,
		"type_instance":   n.TypeInstance,
		"severity":        n.Severity.String(),
		"time":            n.Time,
	})
	for k, v := range n.Meta {
		entry = entry.WithField(k, v)
	}

	switch n.Severity {
	case pcie.SeverityFailure:
		entry.Error(n.Message)
	case pcie.SeverityOkay:
		entry.Info(n.Message)
	default:
		entry.Warn(n.Message)
	}
}

// CollectingSink accumulates notifications in memory, useful for tests and
// for the `check` CLI command's summarized output.
type CollectingSink struct {
	Notifications []pcie.Notification
}

func (s *CollectingSink) Dispatch(n pcie.Notification) {
	s.Notifications = append(s.Notifications, n)
}

// MultiSink fans a notification out to every sink in order.
type MultiSink []pcie.NotificationSink

func (m MultiSink) Dispatch(n pcie.Notification) {
	for _, s := range m {
		s.Dispatch(n)
	}
}
