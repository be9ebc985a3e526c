package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks malformed caller input: empty rule graphs, bad thresholds.
	// It is raised synchronously and never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCollaborator marks a failed call to the structured-generation collaborator
	ErrCollaborator = errors.New("collaborator failed")
)

// AnomalyKind classifies a data anomaly that was repaired instead of raised
type AnomalyKind string

const (
	AnomalyDuplicateSubCategory AnomalyKind = "duplicate_sub_category" // Same id returned twice by extraction
	AnomalyUnknownSubCategory   AnomalyKind = "unknown_sub_category"   // Tagging returned an id not in the taxonomy
	AnomalyInvalidPriority      AnomalyKind = "invalid_priority"       // Priority outside high/medium/low
	AnomalyMissingID            AnomalyKind = "missing_id"             // Sub-category returned without an id
	AnomalyUnknownScenario      AnomalyKind = "unknown_scenario"       // Tagging referenced a scenario outside the batch
)

// Anomaly records a defensive repair made to collaborator output
type Anomaly struct {
	Kind    AnomalyKind `json:"kind"`
	Subject string      `json:"subject"`
	Detail  string      `json:"detail,omitempty"`
}

func (a Anomaly) String() string {
	if a.Detail == "" {
		return fmt.Sprintf("%s: %s", a.Kind, a.Subject)
	}
	return fmt.Sprintf("%s: %s (%s)", a.Kind, a.Subject, a.Detail)
}
