// Package candidates supplies the options a voting round decides between.
package candidates

import (
	"context"
	"errors"
)

// Candidate is one option in a voting round, immutable once fetched.
type Candidate struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	PhotoURL    string `json:"photo_url" yaml:"photo_url"`
}

// DefaultDescription is used when a source has nothing better.
const DefaultDescription = "No description available"

// ErrInvalidLocation is returned when a location is not "lat,lng".
var ErrInvalidLocation = errors.New("location must be \"lat,lng\"")

// Provider returns an ordered candidate list for a location. It may fail or
// return an empty list; callers must tolerate both.
type Provider interface {
	FetchCandidates(ctx context.Context, location string) ([]Candidate, error)
}
