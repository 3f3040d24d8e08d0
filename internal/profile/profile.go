// Package profile turns a child profile id into the safety context a
// decision is made for.
package profile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"curator/internal/models"
)

// Resolver looks up the UserContext of a profile.
type Resolver interface {
	Resolve(ctx context.Context, id string) (models.UserContext, error)
}

// Static serves profiles from a fixed set loaded at startup.
type Static struct {
	profiles map[string]models.UserContext
}

// NewStatic normalizes and validates every profile.
func NewStatic(profiles map[string]models.UserContext) (*Static, error) {
	s := &Static{profiles: make(map[string]models.UserContext, len(profiles))}
	for id, uc := range profiles {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("profile with empty id")
		}
		uc = uc.Normalize()
		if err := uc.Validate(); err != nil {
			return nil, fmt.Errorf("profile %s: %w", id, err)
		}
		s.profiles[id] = uc
	}
	return s, nil
}

func (s *Static) Resolve(ctx context.Context, id string) (models.UserContext, error) {
	if err := ctx.Err(); err != nil {
		return models.UserContext{}, err
	}
	uc, ok := s.profiles[strings.TrimSpace(id)]
	if !ok {
		return models.UserContext{}, fmt.Errorf("profile %q: %w", id, models.ErrNotFound)
	}
	uc.VulnerabilityFactors = append([]models.VulnerabilityFactor(nil), uc.VulnerabilityFactors...)
	return uc, nil
}

// IDs lists the known profile ids, sorted.
func (s *Static) IDs() []string {
	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
