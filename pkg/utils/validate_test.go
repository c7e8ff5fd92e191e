package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name" validate:"required"`
	Limit int    `json:"limit" validate:"min=1,max=600"`
	Zone  string `json:"zone" validate:"omitempty,timezone"`
	Days  []int  `json:"days" validate:"unique,dive,min=0,max=6"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(sample{Name: "x", Limit: 10, Zone: "Europe/Berlin", Days: []int{1, 2}}))

	err := ValidateStruct(sample{Limit: 601, Zone: "Mars/Olympus", Days: []int{1, 1, 9}})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "name is required")
	assert.Contains(t, msg, "limit must be at most 600")
	assert.Contains(t, msg, "zone must be an IANA timezone")
	assert.Contains(t, msg, "days must not repeat values")
	assert.Contains(t, msg, "days[2] must be at most 6")
}
