package usecase

import (
	"regexp"
	"strings"
)

var (
	// ./resume.tex:12: Undefined control sequence.
	fileLineError = regexp.MustCompile(`^\S+\.tex:\d+: `)
	// l.12 \textbf{unclosed
	lineContext = regexp.MustCompile(`^l\.\d+(\s|$)`)
)

// ExtractDiagnostics picks the most useful lines out of an engine log:
// error markers first, then generic error lines, then warnings. At most limit
// lines are returned, joined by newlines.
func ExtractDiagnostics(log string, limit int) string {
	if limit <= 0 {
		limit = DefaultDiagnosticLines
	}
	lines := splitLines(log)

	if out := errorMarkers(lines, limit); len(out) > 0 {
		return strings.Join(out, "\n")
	}
	if out := matching(lines, limit, func(l string) bool {
		return strings.Contains(l, "Error") || strings.Contains(l, "error:") || strings.HasPrefix(l, "Emergency stop")
	}); len(out) > 0 {
		return strings.Join(out, "\n")
	}
	if out := matching(lines, limit, func(l string) bool {
		return strings.Contains(l, "Warning")
	}); len(out) > 0 {
		return strings.Join(out, "\n")
	}
	return ""
}

// errorMarkers collects "!" lines and file:line errors together with the
// "l.<n>" context line TeX prints shortly after them.
func errorMarkers(lines []string, limit int) []string {
	var out []string
	add := func(l string) bool {
		if len(out) > 0 && out[len(out)-1] == l {
			return len(out) < limit
		}
		out = append(out, l)
		return len(out) < limit
	}
	for i, l := range lines {
		if !strings.HasPrefix(l, "!") && !fileLineError.MatchString(l) {
			continue
		}
		if !add(l) {
			return out
		}
		for j := i + 1; j < len(lines) && j <= i+4; j++ {
			if strings.HasPrefix(lines[j], "!") || fileLineError.MatchString(lines[j]) {
				break
			}
			if lineContext.MatchString(lines[j]) {
				if !add(lines[j]) {
					return out
				}
				break
			}
		}
	}
	return out
}

func matching(lines []string, limit int, keep func(string) bool) []string {
	var out []string
	for _, l := range lines {
		if keep(l) {
			out = append(out, l)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

// TailLines returns the last n non-empty lines of s.
func TailLines(s string, n int) string {
	lines := splitLines(s)
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func splitLines(s string) []string {
	raw := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
