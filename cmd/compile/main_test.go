package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEngineFor(t *testing.T) {
	tests := []struct {
		flag, path, want string
	}{
		{"", "resume.tex", "latex"},
		{"", "cv.HTML", "html"},
		{"", "notes.txt", ""},
		{"html", "resume.tex", "html"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, engineFor(tt.flag, tt.path), tt.path)
	}
}
