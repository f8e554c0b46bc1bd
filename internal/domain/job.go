package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusCreated   JobStatus = "created"
	StatusCompiling JobStatus = "compiling"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
)

// CompilationJob lives for exactly one compile request. Nothing keeps it
// after the response is written.
type CompilationJob struct {
	ID          string        `json:"id"`
	Engine      string        `json:"engine"`
	Source      string        `json:"-"`
	Workspace   string        `json:"-"`
	Status      JobStatus     `json:"status"`
	Artifact    []byte        `json:"-"`
	Diagnostics string        `json:"diagnostics,omitempty"`
	Passes      int           `json:"passes"`
	CreatedAt   time.Time     `json:"created_at"`
	Duration    time.Duration `json:"duration"`
}

// NewJobID returns a random 32 character hex id. uuid.New reads crypto/rand,
// so ids are neither sequential nor derived from the clock.
func NewJobID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// IsJobID reports whether value has the shape produced by NewJobID.
func IsJobID(value string) bool {
	if len(value) != 32 {
		return false
	}
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') {
			continue
		}
		return false
	}
	return true
}

// Result is what a successful compile hands back to the caller.
type Result struct {
	JobID       string
	Artifact    []byte
	ContentType string
	Filename    string
	Passes      int
	Duration    time.Duration
}

type HealthStatus string

const (
	HealthOK          HealthStatus = "ok"
	HealthUnavailable HealthStatus = "unavailable"
)

type Health struct {
	Status HealthStatus `json:"status"`
	Engine string       `json:"engine"`
	Detail string       `json:"detail,omitempty"`
}
