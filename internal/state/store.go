// Package state records render history in SQLite.
//
// A Run is one CLI invocation that renders templates; each rendered
// template adds a Render row to its run.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RenderStatus is the outcome of rendering one template.
type RenderStatus string

// Render statuses.
const (
	RenderStatusSuccess RenderStatus = "success"
	RenderStatusFailed  RenderStatus = "failed"
)

// Run is one recorded invocation.
type Run struct {
	ID          string     `json:"id"`
	Command     string     `json:"command"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	// Renders is filled by GetRun only.
	Renders []*Render `json:"renders,omitempty"`
}

// Render is the record of a single template render.
type Render struct {
	ID         string        `json:"id"`
	RunID      string        `json:"run_id"`
	Template   string        `json:"template"`
	Status     RenderStatus  `json:"status"`
	Duration   time.Duration `json:"duration_ns"`
	Bytes      int           `json:"bytes"`
	SHA256     string        `json:"sha256,omitempty"`
	Error      string        `json:"error,omitempty"`
	RenderedAt time.Time     `json:"rendered_at"`
}

// NewRender builds a render record from the outcome of one render.
func NewRender(template, output string, duration time.Duration, err error) *Render {
	r := &Render{
		Template:   template,
		Duration:   duration,
		RenderedAt: time.Now().UTC(),
	}
	if err != nil {
		r.Status = RenderStatusFailed
		r.Error = err.Error()
		return r
	}
	sum := sha256.Sum256([]byte(output))
	r.Status = RenderStatusSuccess
	r.Bytes = len(output)
	r.SHA256 = hex.EncodeToString(sum[:])
	return r
}
