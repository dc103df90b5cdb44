package model

import (
	"fmt"
	"strings"
)

// Problem is one invalid input item found during ingestion
type Problem struct {
	Item    string `json:"item"`            // Parameter path or claim id
	Field   string `json:"field,omitempty"` // Offending field, if known
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (p Problem) String() string {
	if p.Field != "" {
		return fmt.Sprintf("%s [%s]: %s", p.Item, p.Field, p.Message)
	}
	return fmt.Sprintf("%s: %s", p.Item, p.Message)
}

// IngestionError collects every problem found while constructing a store or registry
type IngestionError struct {
	Source   string    `json:"source"` // "parameters" or "formulas", or a file path
	Problems []Problem `json:"problems"`
}

func (e *IngestionError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("ingest %s: %s", e.Source, e.Problems[0])
	}
	lines := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		lines = append(lines, "  - "+p.String())
	}
	return fmt.Sprintf("ingest %s: %d problems:\n%s", e.Source, len(e.Problems), strings.Join(lines, "\n"))
}

// Unwrap exposes the underlying typed errors for errors.Is / errors.As
func (e *IngestionError) Unwrap() []error {
	var errs []error
	for _, p := range e.Problems {
		if p.Err != nil {
			errs = append(errs, p.Err)
		}
	}
	return errs
}

// Add appends a problem
func (e *IngestionError) Add(item, field string, err error) {
	e.Problems = append(e.Problems, Problem{Item: item, Field: field, Message: err.Error(), Err: err})
}

// OrNil returns nil when no problems were collected
func (e *IngestionError) OrNil() error {
	if e == nil || len(e.Problems) == 0 {
		return nil
	}
	return e
}
