package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Interval time.Duration `mapstructure:"interval" validate:"min=0"`
	Name     string        `mapstructure:"name" validate:"required"`
}

func TestValidateStructPasses(t *testing.T) {
	require.NoError(t, ValidateStruct(sample{Name: "ok", Interval: time.Second}))
}

func TestValidateStructReportsFieldNames(t *testing.T) {
	err := ValidateStruct(sample{Interval: -time.Second})
	require.Error(t, err)

	failures, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.NotEmpty(t, failures)
	require.Contains(t, err.Error(), "name")
	require.Contains(t, err.Error(), "interval")
}
