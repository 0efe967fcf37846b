package pcie

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempLog(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kern.log")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestParserJobAssemblesMultiLineMessage(t *testing.T) {
	const logLines = `Aug  1 00:00:01 host kernel: pcieport 0000:00:1c.0: AER: Corrected error received: 0000:00:1c.0
Aug  1 00:00:01 host kernel: pcieport 0000:00:1c.0: PCIe Bus Error: severity=Corrected, type=Data Link Layer, id=0000(Receiver ID)
`
	path := writeTempLog(t, logLines)

	job, err := newParserJob(path, DefaultParserConfig(), true)
	if err != nil {
		t.Fatalf("newParserJob: %v", err)
	}

	msgs, err := job.read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}

	msg := msgs[0]
	if v, _ := msg.get("root port"); v != "0000:00:1c.0" {
		t.Errorf("root port = %q", v)
	}
	if v, _ := msg.get("severity"); v != "Corrected" {
		t.Errorf("severity = %q", v)
	}
	if v, _ := msg.get("id"); v != "0000(Receiver ID)" {
		t.Errorf("id = %q", v)
	}
}

func TestParserJobDiscardsIncompleteMessageOnAnchor(t *testing.T) {
	// First message never supplies the mandatory "severity" field before a
	// fresh "id" line re-triggers the anchor; it must be silently dropped,
	// and the second (complete) message must still be produced.
	const logLines = `Aug  1 00:00:01 host kernel: pcieport 0000:00:1c.0: AER: Corrected error received: 0000:00:1c.0
Aug  1 00:00:01 host kernel: pcieport 0000:00:1c.0: PCIe Bus Error: type=Data Link Layer, id=incomplete
Aug  1 00:00:02 host kernel: pcieport 0000:00:1d.0: AER: Corrected error received: 0000:00:1d.0
Aug  1 00:00:02 host kernel: pcieport 0000:00:1d.0: PCIe Bus Error: severity=Fatal, type=Data Link Layer, id=complete
`
	path := writeTempLog(t, logLines)

	job, err := newParserJob(path, DefaultParserConfig(), true)
	if err != nil {
		t.Fatalf("newParserJob: %v", err)
	}

	msgs, err := job.read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (incomplete one dropped)", len(msgs))
	}
	if v, _ := msgs[0].get("id"); v != "complete" {
		t.Errorf("id = %q, want %q", v, "complete")
	}
}

func TestParserJobHandlesTruncatedTrailingLineAcrossReads(t *testing.T) {
	path := writeTempLog(t, "")
	job, err := newParserJob(path, DefaultParserConfig(), true)
	if err != nil {
		t.Fatalf("newParserJob: %v", err)
	}

	full := "Aug  1 00:00:01 host kernel: pcieport 0000:00:1c.0: AER: Corrected error received: 0000:00:1c.0\n" +
		"Aug  1 00:00:01 host kernel: pcieport 0000:00:1c.0: PCIe Bus Error: severity=Corrected, type=Data Link Layer, id=0000\n"

	// Simulate two reads: first delivers everything up to, but not
	// including, the trailing newline of the second line.
	firstChunk := full[:len(full)-1]
	if err := os.WriteFile(path, []byte(firstChunk), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	msgs, err := job.read()
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("first read: got %d messages, want 0 (trailing line incomplete)", len(msgs))
	}
	if len(job.pending) == 0 {
		t.Fatalf("expected a pending partial line after first read")
	}

	if err := os.WriteFile(path, []byte(full), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	msgs, err = job.read()
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("second read: got %d messages, want 1", len(msgs))
	}
}

func TestParserJobFirstFullReadFalseSkipsExistingContent(t *testing.T) {
	path := writeTempLog(t, "Aug  1 00:00:01 host kernel: pcieport 0000:00:1c.0: AER: Corrected error received: 0000:00:1c.0\n")

	job, err := newParserJob(path, DefaultParserConfig(), false)
	if err != nil {
		t.Fatalf("newParserJob: %v", err)
	}

	msgs, err := job.read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("got %d messages, want 0 (pre-existing content skipped)", len(msgs))
	}
}

func TestParserJobRotationResetsOffset(t *testing.T) {
	path := writeTempLog(t, "a filler line present only to make the pre-rotation file longer than what replaces it after rotation\n")
	job, err := newParserJob(path, DefaultParserConfig(), false)
	if err != nil {
		t.Fatalf("newParserJob: %v", err)
	}
	if _, err := job.read(); err != nil {
		t.Fatalf("initial read: %v", err)
	}

	// Truncate to simulate log rotation, then write fresh content shorter
	// than the previous offset.
	short := "Aug  1 00:00:01 host kernel: pcieport 0000:00:1c.0: AER: Corrected error received: 0000:00:1c.0\n"
	if err := os.WriteFile(path, []byte(short), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := job.read(); err != nil {
		t.Fatalf("post-rotation read: %v", err)
	}
	if job.offset != int64(len(short)) {
		t.Errorf("offset after rotation+read = %d, want %d", job.offset, len(short))
	}
}

func TestShapeLogMessageSeverityClassification(t *testing.T) {
	cases := []struct {
		severity     string
		wantInstance string
		wantSeverity Severity
	}{
		{"Corrected", typeInstanceCorrectable, SeverityWarning},
		{"Non-Fatal", typeInstanceNonFatal, SeverityWarning},
		{"Fatal", typeInstanceFatal, SeverityFailure},
	}
	for _, c := range cases {
		msg := logMessage{fields: []logField{
			{name: "root port", value: "0000:00:1c.0"},
			{name: "device", value: "0000:01:00.0"},
			{name: "severity", value: c.severity},
			{name: "id", value: "0000"},
		}}
		n := shapeLogMessage(msg)
		if n.TypeInstance != c.wantInstance {
			t.Errorf("severity %q: TypeInstance = %q, want %q", c.severity, n.TypeInstance, c.wantInstance)
		}
		if n.Severity != c.wantSeverity {
			t.Errorf("severity %q: Severity = %v, want %v", c.severity, n.Severity, c.wantSeverity)
		}
		if n.PluginInstance != "0000:01:00.0" {
			t.Errorf("PluginInstance = %q, want device field value", n.PluginInstance)
		}
	}
}
