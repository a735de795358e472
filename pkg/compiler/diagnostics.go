package compiler

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/lin-qingying/kcjpm-sub000/pkg/events"
)

// parserState names the diagnostic parser's position in a multi-line
// compiler message.
type parserState int

const (
	stateIdle parserState = iota
	statePendingDiagnostic
	stateCollectingSnippet
)

// ansiEscape strips terminal color codes cjc may emit even when asked
// for plain output.
var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// severityHeader matches a diagnostic's opening line: "warning: <msg>"
// or "error: <msg>".
var severityHeader = regexp.MustCompile(`^(warning|error):\s*(.*)$`)

// locationLine matches the " ==> <file>:<line>:<col>:" line that follows
// a severity header.
var locationLine = regexp.MustCompile(`^\s*==>\s+(.+?):(\d+):(\d+):\s*$`)

// summaryLine matches the trailing "N warning generated, N warning
// printed." (or error-) line that ends a diagnostic run.
var summaryLine = regexp.MustCompile(`^\d+\s+\S+\s+generated\b`)

// DiagnosticParser turns cjc's raw stdout/stderr lines into structured
// events.Diagnostic values. cjc emits multi-line diagnostics:
//
//	warning: unused function:'name'
//	 ==> src/b.cj:3:1:
//	  |
//	3 | func name() {}
//	  | ^^^^^^^^^^^^^
//	  |
//	1 warning generated, 1 warning printed.
//
// The parser is a line-oriented state machine: Idle (waiting for a
// severity header) -> PendingDiagnostic (waiting for the "==>" location
// line) -> CollectingSnippet (accumulating the source excerpt until a
// blank line, a "#"-prefixed note, or the summary line terminates it).
type DiagnosticParser struct {
	state   parserState
	current events.Diagnostic
	snippet strings.Builder
	done    []events.Diagnostic
}

// Feed processes one line of compiler output.
func (p *DiagnosticParser) Feed(rawLine string) {
	line := ansiEscape.ReplaceAllString(rawLine, "")

	switch p.state {
	case stateIdle:
		if m := severityHeader.FindStringSubmatch(line); m != nil {
			p.current = events.Diagnostic{Severity: m[1], Message: m[2]}
			p.state = statePendingDiagnostic
		}

	case statePendingDiagnostic:
		if m := locationLine.FindStringSubmatch(line); m != nil {
			p.current.File = m[1]
			lineNum, _ := strconv.Atoi(m[2])
			col, _ := strconv.Atoi(m[3])
			p.current.Line = lineNum
			p.current.Column = col
			p.state = stateCollectingSnippet
			return
		}
		// A new diagnostic started before this one ever got a location;
		// emit what we have and reconsider this line from Idle.
		if severityHeader.MatchString(line) {
			p.flush()
			p.Feed(rawLine)
		}

	case stateCollectingSnippet:
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || summaryLine.MatchString(trimmed) {
			p.flush()
			return
		}
		if severityHeader.MatchString(line) {
			p.flush()
			p.Feed(rawLine)
			return
		}
		if p.snippet.Len() > 0 {
			p.snippet.WriteByte('\n')
		}
		p.snippet.WriteString(line)
	}
}

// flush finalizes the in-progress diagnostic, if any.
func (p *DiagnosticParser) flush() {
	if p.state == stateIdle {
		return
	}
	p.current.Snippet = p.snippet.String()
	p.done = append(p.done, p.current)
	p.current = events.Diagnostic{}
	p.snippet.Reset()
	p.state = stateIdle
}

// Diagnostics returns every diagnostic parsed so far, finalizing any
// still in progress.
func (p *DiagnosticParser) Diagnostics() []events.Diagnostic {
	p.flush()
	return p.done
}

// ParseDiagnostics is a convenience entry point for parsing a complete
// stream at once (e.g. a captured output buffer in a test).
func ParseDiagnostics(r io.Reader) []events.Diagnostic {
	var p DiagnosticParser
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.Feed(scanner.Text())
	}
	return p.Diagnostics()
}
