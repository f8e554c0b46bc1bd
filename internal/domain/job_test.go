package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewJobID(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 1000; i++ {
		id := NewJobID()
		assert.True(t, IsJobID(id), "id %q", id)
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %q", id)
		seen[id] = struct{}{}
	}
}

func TestIsJobID(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{name: "valid", value: "0123456789abcdef0123456789abcdef", want: true},
		{name: "upper case", value: "0123456789ABCDEF0123456789ABCDEF", want: false},
		{name: "short", value: "0123456789abcdef", want: false},
		{name: "dashed uuid", value: "01234567-89ab-cdef-0123-456789abcdef", want: false},
		{name: "traversal", value: "../../../../../../../../../etc/xx", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsJobID(tt.value))
		})
	}
}
