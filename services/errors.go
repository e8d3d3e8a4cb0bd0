package services

import (
	"errors"

	apperrors "supply-service/common/errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// storeError passes domain errors through and turns anything else into a
// retryable unavailable error. Missing rows become notFound.
func storeError(log *zap.Logger, err error, notFound *apperrors.Error, msg string) error {
	var appErr *apperrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, gorm.ErrRecordNotFound) && notFound != nil:
		return notFound
	}
	log.Error(msg, zap.Error(err))
	return apperrors.Unavailable("Temporary failure, please retry", err)
}
