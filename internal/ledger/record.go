// Package ledger keeps a tamper-evident, signed, append-only record of step
// results. Each record hashes its predecessor, so editing any stored result
// breaks the chain.
package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"matrixci/pkg/hashutil"
)

// Record is one step result in the chain.
type Record struct {
	Index     int    `json:"index"`
	Timestamp string `json:"timestamp"`
	RunID     string `json:"runId"`
	Job       string `json:"job"`
	Step      string `json:"step"`
	Status    string `json:"status"`
	LogHash   string `json:"logHash"`
	PrevHash  string `json:"prevHash"`
	Hash      string `json:"hash"`
	RunnerID  string `json:"runnerId"`
	Signature string `json:"signature"`
	PubKey    string `json:"pubKey"`
}

// canonicalData returns the JSON bytes the record hash covers. Hash,
// Signature and PubKey are excluded.
func (r *Record) canonicalData() ([]byte, error) {
	view := struct {
		Index     int    `json:"index"`
		Timestamp string `json:"timestamp"`
		RunID     string `json:"runId"`
		Job       string `json:"job"`
		Step      string `json:"step"`
		Status    string `json:"status"`
		LogHash   string `json:"logHash"`
		PrevHash  string `json:"prevHash"`
		RunnerID  string `json:"runnerId"`
	}{
		Index:     r.Index,
		Timestamp: r.Timestamp,
		RunID:     r.RunID,
		Job:       r.Job,
		Step:      r.Step,
		Status:    r.Status,
		LogHash:   r.LogHash,
		PrevHash:  r.PrevHash,
		RunnerID:  r.RunnerID,
	}
	return json.Marshal(view)
}

// ComputeHash calculates SHA-256 over canonicalData.
func (r *Record) ComputeHash() (string, error) {
	data, err := r.canonicalData()
	if err != nil {
		return "", err
	}
	return hashutil.Bytes(data), nil
}

// NewRecord constructs a record and computes its hash. The signature is
// applied when the record is appended to a ledger.
func NewRecord(index int, runID, job, step, status, logHash, prevHash, runnerID string) (*Record, error) {
	rec := &Record{
		Index:     index,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RunID:     runID,
		Job:       job,
		Step:      step,
		Status:    status,
		LogHash:   logHash,
		PrevHash:  prevHash,
		RunnerID:  runnerID,
	}
	h, err := rec.ComputeHash()
	if err != nil {
		return nil, fmt.Errorf("compute record hash: %w", err)
	}
	rec.Hash = h
	return rec, nil
}
