package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceFailureSurvivesWrapping(t *testing.T) {
	cause := errors.New("401 from upstream")
	err := fmt.Errorf("fetch revenue rows: %w", SourceFailure("order_system", CodeAuthExpired, cause))

	e, ok := As(err)
	require.True(t, ok)
	require.Equal(t, KindSource, e.Kind)
	require.Equal(t, CodeAuthExpired, e.Code)
	require.Equal(t, "order_system", e.Source)
	require.ErrorIs(t, err, cause)
	require.True(t, IsKind(err, KindSource))
	require.False(t, IsKind(err, KindValidation))
}

func TestSourceFailureDefaultsToUnavailable(t *testing.T) {
	err := SourceFailure("crm_system", "", nil)
	require.Equal(t, CodeUnavailable, err.Code)
	require.Equal(t, "crm_system: source request failed", err.Error())
}

func TestValidationMessage(t *testing.T) {
	err := Validation("lookback_out_of_range", "lookback must be between 1 and %d days", 365)
	require.Equal(t, "lookback must be between 1 and 365 days", err.Error())
	require.False(t, IsKind(errors.New("plain"), KindValidation))
}
