package usecase

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractDiagnostics(t *testing.T) {
	tests := []struct {
		name  string
		log   string
		limit int
		want  string
	}{
		{
			name: "bang error with line context",
			log: `(./resume.tex
LaTeX2e <2023-11-01>
! Missing $ inserted.
<inserted text>
                $
l.14 Salary 100_
                000
?`,
			want: "! Missing $ inserted.\nl.14 Salary 100_",
		},
		{
			name: "file line error format",
			log: `Overfull \hbox (1.2pt too wide) in paragraph
LaTeX Warning: Citation 'x' undefined.
./resume.tex:7: Undefined control sequence.
l.7 \foo
./resume.tex:9: Emergency stop.`,
			want: "./resume.tex:7: Undefined control sequence.\nl.7 \\foo\n./resume.tex:9: Emergency stop.",
		},
		{
			name: "generic error lines when no markers",
			log:  "Running engine\nPackage fontspec Error: font not found\nok",
			want: "Package fontspec Error: font not found",
		},
		{
			name: "warnings as last resort",
			log:  "info\nLaTeX Warning: There were undefined references.\nmore info",
			want: "LaTeX Warning: There were undefined references.",
		},
		{
			name: "nothing useful",
			log:  "This is pdfTeX\nOutput written on resume.pdf",
			want: "",
		},
		{
			name: "empty",
			log:  "",
			want: "",
		},
		{
			name: "windows line endings",
			log:  "! Undefined control sequence.\r\nl.2 \\x\r\n",
			want: "! Undefined control sequence.\nl.2 \\x",
		},
		{
			name:  "capped",
			log:   "! one\n! two\n! three\n! four",
			limit: 2,
			want:  "! one\n! two",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDiagnostics(tt.log, tt.limit))
		})
	}
}

func TestExtractDiagnosticsDefaultCap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, "! error %d\n", i)
	}
	got := strings.Split(ExtractDiagnostics(b.String(), 0), "\n")
	assert.Len(t, got, DefaultDiagnosticLines)
	assert.Equal(t, "! error 0", got[0])
}

func TestTailLines(t *testing.T) {
	assert.Equal(t, "c\nd", TailLines("a\n\nb\nc\n\nd\n", 2))
	assert.Equal(t, "a", TailLines("a", 5))
	assert.Equal(t, "", TailLines("\n\n", 5))
}
