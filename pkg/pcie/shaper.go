package pcie

import "strings"

// shapeLogMessage builds one WARNING (or upgraded FAILURE) notification
// from a parsed log message (§4.F). Iteration order follows msg.fields,
// i.e. pattern declaration order.
func shapeLogMessage(msg logMessage) Notification {
	n := Notification{
		Severity:     SeverityWarning,
		TypeInstance: typeInstanceCorrectable,
	}

	for _, f := range msg.fields {
		switch f.name {
		case "severity":
			n.TypeInstance, n.Severity = classifyLogSeverity(f.value)
		case "device":
			n.PluginInstance = f.value
		default:
			if f.value == "" {
				continue
			}
			if n.Meta == nil {
				n.Meta = map[string]string{}
			}
			n.Meta[f.name] = f.value
		}
	}

	n.Message = "AER " + n.TypeInstance + " error reported in log"
	return n
}

// classifyLogSeverity maps the log's free-text "severity=" value onto a
// type_instance and notification severity. "non-fatal" must not match the
// "fatal" substring check (§4.F).
func classifyLogSeverity(value string) (typeInstance string, sev Severity) {
	lower := strings.ToLower(value)
	switch {
	case strings.Contains(lower, "non-fatal"):
		return typeInstanceNonFatal, SeverityWarning
	case strings.Contains(lower, "fatal"):
		return typeInstanceFatal, SeverityFailure
	default:
		return typeInstanceCorrectable, SeverityWarning
	}
}
