package model

import "fmt"

// Experimental is a measured comparison value attached to a parameter
type Experimental struct {
	Value  float64 `json:"value"`
	Error  float64 `json:"error"`  // One-sigma uncertainty
	Source string  `json:"source"` // Where the measurement comes from
}

// CitationRef points at an external result. Instances are interned by the
// registry and shared across claims; never mutate one after registration.
type CitationRef struct {
	Authors string `json:"authors"`
	Year    int    `json:"year"`
	Locator string `json:"locator"` // DOI, arXiv id, journal page, ...
}

// Key returns the interning key
func (c CitationRef) Key() string {
	return fmt.Sprintf("%s|%d|%s", c.Authors, c.Year, c.Locator)
}

func (c CitationRef) String() string {
	if c.Locator == "" {
		return fmt.Sprintf("%s (%d)", c.Authors, c.Year)
	}
	return fmt.Sprintf("%s (%d), %s", c.Authors, c.Year, c.Locator)
}
