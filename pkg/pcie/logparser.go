package pcie

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
)

// PatternConfig describes one named regular-expression pattern within a
// parser's ordered list (§3, §6 pattern block).
type PatternConfig struct {
	Name         string
	Regex        string
	SubmatchIdx  int // default 1
	ExcludeRegex string
	IsMandatory  bool
}

// ParserConfig is a named ordered list of patterns (§3 "Parser").
type ParserConfig struct {
	Name    string
	Matches []PatternConfig
}

// DefaultParserConfig returns Table 4's default patterns, installed when
// ReadLog is enabled and no parser was configured (§4.G).
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		Name: "default",
		Matches: []PatternConfig{
			{Name: "root port", Regex: `pcieport (.*): AER:`, SubmatchIdx: 1, IsMandatory: true},
			{Name: "device", Regex: ` ([0-9a-fA-F:\.]*): PCIe Bus Error`, SubmatchIdx: 1, IsMandatory: true},
			{Name: "severity", Regex: `severity=([^,]*)`, SubmatchIdx: 1, IsMandatory: true},
			{Name: "error type", Regex: `type=(.*),`, SubmatchIdx: 1, IsMandatory: false},
			{Name: "id", Regex: `, id=(.*)`, SubmatchIdx: 1, IsMandatory: true},
		},
	}
}

// compiledPattern is one PatternConfig with its regexes compiled.
type compiledPattern struct {
	name        string
	re          *regexp.Regexp
	submatchIdx int
	excludeRe   *regexp.Regexp
	mandatory   bool
}

func compilePatterns(matches []PatternConfig) ([]compiledPattern, error) {
	out := make([]compiledPattern, 0, len(matches))
	for _, m := range matches {
		re, err := regexp.Compile(m.Regex)
		if err != nil {
			return nil, fmt.Errorf("pcie: invalid regex for pattern %q: %w", m.Name, err)
		}
		submatch := m.SubmatchIdx
		if submatch == 0 {
			submatch = 1
		}
		var excludeRe *regexp.Regexp
		if m.ExcludeRegex != "" {
			excludeRe, err = regexp.Compile(m.ExcludeRegex)
			if err != nil {
				return nil, fmt.Errorf("pcie: invalid exclude regex for pattern %q: %w", m.Name, err)
			}
		}
		out = append(out, compiledPattern{
			name:        m.Name,
			re:          re,
			submatchIdx: submatch,
			excludeRe:   excludeRe,
			mandatory:   m.IsMandatory,
		})
	}
	return out, nil
}

// logMessage is one assembled record: pattern name -> captured value, in
// pattern order (§3 "small ordered map").
type logMessage struct {
	fields []logField
}

type logField struct {
	name  string
	value string
}

func (m logMessage) get(name string) (string, bool) {
	for _, f := range m.fields {
		if f.name == name {
			return f.value, true
		}
	}
	return "", false
}

// inProgress tracks one message being assembled across lines.
type inProgress struct {
	satisfied []bool
	values    []string
}

func newInProgress(n int) *inProgress {
	return &inProgress{satisfied: make([]bool, n), values: make([]string, n)}
}

func (ip *inProgress) allMandatorySatisfied(patterns []compiledPattern) bool {
	for i, p := range patterns {
		if p.mandatory && !ip.satisfied[i] {
			return false
		}
	}
	return true
}

func (ip *inProgress) toMessage(patterns []compiledPattern) logMessage {
	msg := logMessage{}
	for i, p := range patterns {
		if ip.satisfied[i] {
			msg.fields = append(msg.fields, logField{name: p.name, value: ip.values[i]})
		} else {
			msg.fields = append(msg.fields, logField{name: p.name, value: ""})
		}
	}
	return msg
}

// parserJob wraps a log path, its compiled patterns, and incremental
// tail-read state (§3 "Parser job").
type parserJob struct {
	name string
	path string

	patterns  []compiledPattern
	anchorIdx int

	offset  int64
	pending []byte // a truncated trailing line carried across reads

	cur *inProgress
}

func newParserJob(path string, cfg ParserConfig, firstFullRead bool) (*parserJob, error) {
	patterns, err := compilePatterns(cfg.Matches)
	if err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return nil, fmt.Errorf("pcie: parser %q has no patterns", cfg.Name)
	}

	job := &parserJob{
		name:      cfg.Name,
		path:      path,
		patterns:  patterns,
		anchorIdx: len(patterns) - 1, // §9: preserve "last pattern" behavior
		cur:       newInProgress(len(patterns)),
	}

	if !firstFullRead {
		if fi, err := os.Stat(path); err == nil {
			job.offset = fi.Size()
		}
		// If the file doesn't exist yet, offset stays 0: the first
		// successful read will pick up everything written since.
	}

	return job, nil
}

// read consumes all bytes appended to the log since the previous call (or,
// on a FirstFullRead job, since file start), and returns every message
// completed during this read. An unreadable log file is a failure (§4.E,
// §7): the caller is responsible for emitting the FAILURE notification.
func (j *parserJob) read() ([]logMessage, error) {
	f, err := os.Open(j.path)
	if err != nil {
		return nil, fmt.Errorf("pcie: failed to open log file %s: %w", j.path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("pcie: failed to stat log file %s: %w", j.path, err)
	}

	// Log rotation/truncation: if the file shrank below our last offset,
	// restart from the beginning.
	if fi.Size() < j.offset {
		j.offset = 0
		j.pending = nil
	}

	if fi.Size() == j.offset {
		return nil, nil
	}

	if _, err := f.Seek(j.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("pcie: failed to seek log file %s: %w", j.path, err)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("pcie: failed to read log file %s: %w", j.path, err)
	}
	j.offset += int64(len(data))

	buf := append(j.pending, data...)
	j.pending = nil

	var msgs []logMessage
	scanner := bufio.NewScanner(bytes.NewReader(buf))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lastHadNewline := len(buf) > 0 && buf[len(buf)-1] == '\n'
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if !lastHadNewline && len(lines) > 0 {
		j.pending = []byte(lines[len(lines)-1])
		lines = lines[:len(lines)-1]
	}

	for _, line := range lines {
		if msg, ok := j.feed(line); ok {
			msgs = append(msgs, msg)
		}
	}

	return msgs, nil
}

// feed tests line against every unsatisfied pattern of the in-progress
// message, then applies the completion rule (§4.E): completion happens
// either because every mandatory pattern is now satisfied, or because the
// anchor pattern was just (re)matched — which always starts a fresh
// message, flushing the old one if it was complete and discarding it
// silently otherwise.
func (j *parserJob) feed(line string) (logMessage, bool) {
	anchorWasSatisfied := j.cur.satisfied[j.anchorIdx]

	for i, p := range j.patterns {
		if j.cur.satisfied[i] {
			continue
		}
		if p.excludeRe != nil && p.excludeRe.MatchString(line) {
			continue
		}
		sub := p.re.FindStringSubmatch(line)
		if sub == nil || p.submatchIdx >= len(sub) {
			continue
		}
		j.cur.satisfied[i] = true
		j.cur.values[i] = sub[p.submatchIdx]
	}

	anchorJustMatched := !anchorWasSatisfied && j.cur.satisfied[j.anchorIdx]

	if anchorJustMatched {
		complete := j.cur.allMandatorySatisfied(j.patterns)
		var msg logMessage
		if complete {
			msg = j.cur.toMessage(j.patterns)
		}
		j.cur = newInProgress(len(j.patterns))
		return msg, complete
	}

	if j.cur.allMandatorySatisfied(j.patterns) {
		msg := j.cur.toMessage(j.patterns)
		j.cur = newInProgress(len(j.patterns))
		return msg, true
	}

	return logMessage{}, false
}
