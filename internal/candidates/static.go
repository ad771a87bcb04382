package candidates

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Static serves the same list for every location.
type Static struct {
	list []Candidate
}

func NewStatic(list []Candidate) *Static {
	return &Static{list: list}
}

// Fixtures returns the built-in test restaurants.
func Fixtures() []Candidate {
	return []Candidate{
		{ID: "1", Name: "Restaurante Prueba 1113", Description: "Un restaurante de prueba.", PhotoURL: "https://via.placeholder.com/400"},
		{ID: "2", Name: "Restaurante Prueba 2", Description: "Otro restaurante de prueba.", PhotoURL: "https://via.placeholder.com/400"},
		{ID: "3", Name: "Restaurante Prueba 3", Description: "Más datos de prueba.", PhotoURL: "https://via.placeholder.com/400"},
	}
}

func (s *Static) FetchCandidates(ctx context.Context, location string) ([]Candidate, error) {
	out := make([]Candidate, len(s.list))
	copy(out, s.list)
	return out, nil
}

type fixtureFile struct {
	Candidates []Candidate `yaml:"candidates"`
}

// LoadFile reads a YAML fixture file of the form:
//
//	candidates:
//	  - id: "1"
//	    name: Casa Lucio
//	    description: Huevos rotos
//	    photo_url: https://example.com/lucio.jpg
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidates file: %w", err)
	}

	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse candidates file: %w", err)
	}

	seen := make(map[string]bool, len(f.Candidates))
	for i, c := range f.Candidates {
		if c.ID == "" || c.Name == "" {
			return nil, fmt.Errorf("candidate %d: id and name are required", i)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("candidate %d: duplicate id %q", i, c.ID)
		}
		seen[c.ID] = true
		if c.Description == "" {
			f.Candidates[i].Description = DefaultDescription
		}
	}
	return NewStatic(f.Candidates), nil
}
