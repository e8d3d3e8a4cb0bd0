package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	apperrors "supply-service/common/errors"

	"github.com/stretchr/testify/assert"
)

func TestKindsMapToStatusCodes(t *testing.T) {
	tests := []struct {
		err  *apperrors.Error
		code int
	}{
		{apperrors.Validation("bad"), http.StatusBadRequest},
		{apperrors.Forbidden("no"), http.StatusForbidden},
		{apperrors.NotFound("gone"), http.StatusNotFound},
		{apperrors.InvalidTransition("nope"), http.StatusConflict},
		{apperrors.BlockedByDiscrepancy("open"), http.StatusConflict},
		{apperrors.EditWindowExpired("late"), http.StatusForbidden},
		{apperrors.AlreadyResolved("done"), http.StatusConflict},
		{apperrors.Unavailable("db down", nil), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, tt.err.Code, string(tt.err.Kind))
	}
}

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", apperrors.BlockedByDiscrepancy("2 open discrepancies"))

	assert.True(t, stderrors.Is(err, apperrors.ErrBlockedByDiscrepancy))
	assert.False(t, stderrors.Is(err, apperrors.ErrInvalidTransition))
}

func TestFromUnknownErrorIsUnavailable(t *testing.T) {
	appErr := apperrors.From(stderrors.New("connection refused"))

	assert.Equal(t, apperrors.KindUnavailable, appErr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.Code)
	assert.Nil(t, apperrors.From(nil))
}

func TestWithDetailsDoesNotMutateOriginal(t *testing.T) {
	base := apperrors.BlockedByDiscrepancy("open")
	withDetails := base.WithDetails(map[string]int{"unresolved_count": 1})

	assert.Nil(t, base.Details)
	assert.NotNil(t, withDetails.Details)
	assert.Equal(t, apperrors.KindBlockedByDiscrepancy, withDetails.Kind)
}
