package source

import (
	"errors"

	"github.com/spigell/jobradar/internal/apperrors"
)

// Annotate attaches provider context to err, converting foreign errors to
// INTERNAL domain errors.
func Annotate(err error, provider string) error {
	if err == nil {
		return nil
	}
	var de *apperrors.DomainError
	if errors.As(err, &de) {
		if de.Provider != "" {
			return err
		}
		return de.WithProvider(provider)
	}
	return apperrors.Internal("connector failed", err).WithProvider(provider)
}
