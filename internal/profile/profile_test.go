package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/models"
)

func TestStatic(t *testing.T) {
	s, err := NewStatic(map[string]models.UserContext{
		"grandma": {AgeCategory: "Adult", VulnerabilityFactors: []models.VulnerabilityFactor{"elderly", "elderly"}},
		"kid":     {AgeCategory: models.AgeUnder13, Jurisdiction: "eu"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"grandma", "kid"}, s.IDs())

	uc, err := s.Resolve(context.Background(), "grandma")
	require.NoError(t, err)
	assert.Equal(t, models.AgeAdult, uc.AgeCategory)
	assert.Equal(t, []models.VulnerabilityFactor{models.FactorElderly}, uc.VulnerabilityFactors)

	// callers cannot mutate the stored profile
	uc.VulnerabilityFactors[0] = models.FactorRecentLoss
	again, err := s.Resolve(context.Background(), " grandma ")
	require.NoError(t, err)
	assert.Equal(t, models.FactorElderly, again.VulnerabilityFactors[0])

	kid, err := s.Resolve(context.Background(), "kid")
	require.NoError(t, err)
	assert.Equal(t, "EU", kid.Jurisdiction)

	_, err = s.Resolve(context.Background(), "nobody")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestNewStatic_RejectsInvalidProfiles(t *testing.T) {
	_, err := NewStatic(map[string]models.UserContext{"x": {AgeCategory: "toddler"}})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = NewStatic(map[string]models.UserContext{" ": {}})
	assert.Error(t, err)
}
