package sink

import (
	"bytes"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"pcie-monitor/pkg/pcie"
)

func TestLogSinkDispatchLevelsBySeverity(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()
	logger.SetOutput(&buf)

	s := NewLogSink(logger)
	s.Dispatch(pcie.Notification{
		Severity:     pcie.SeverityFailure,
		Message:      "Fatal Error set",
		TypeInstance: "fatal",
	})

	output := buf.String()
	if !strings.Contains(output, "level=error") {
		t.Errorf("expected error level in output, got %q", output)
	}
	if !strings.Contains(output, "Fatal Error set") {
		t.Errorf("message missing from output: %q", output)
	}
}

func TestLogSinkIncludesMeta(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()
	logger.SetOutput(&buf)

	s := NewLogSink(logger)
	s.Dispatch(pcie.Notification{
		Severity: pcie.SeverityWarning,
		Message:  "Correctable Error set",
		Meta:     map[string]string{"interface": "eth0"},
	})

	if !strings.Contains(buf.String(), "interface=eth0") {
		t.Errorf("meta field missing from output: %q", buf.String())
	}
}

func TestCollectingSinkAccumulates(t *testing.T) {
	s := &CollectingSink{}
	s.Dispatch(pcie.Notification{Message: "one"})
	s.Dispatch(pcie.Notification{Message: "two"})

	if len(s.Notifications) != 2 {
		t.Fatalf("got %d notifications, want 2", len(s.Notifications))
	}
}

func TestMultiSinkFansOutInOrder(t *testing.T) {
	a, b := &CollectingSink{}, &CollectingSink{}
	multi := MultiSink{a, b}

	multi.Dispatch(pcie.Notification{Message: "hello"})

	if len(a.Notifications) != 1 || len(b.Notifications) != 1 {
		t.Fatalf("expected both sinks to receive the notification: a=%d b=%d", len(a.Notifications), len(b.Notifications))
	}
}
