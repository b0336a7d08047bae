package model

import (
	"encoding/json"
	"time"
)

// RunKind identifies what a ledger run did.
type RunKind string

const (
	RunKindBootstrap  RunKind = "bootstrap"
	RunKindTrain      RunKind = "train"
	RunKindPrecompute RunKind = "precompute"
)

// RunStatus represents the current state of a ledger run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one entry in the training/precompute run ledger.
type Run struct {
	ID          string          `json:"id"`
	Kind        RunKind         `json:"kind"`
	Status      RunStatus       `json:"status"`
	Fingerprint string          `json:"fingerprint"`
	Summary     json.RawMessage `json:"summary,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
