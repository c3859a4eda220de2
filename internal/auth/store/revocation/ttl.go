package revocation

import (
	"time"

	dErrors "organograma/pkg/domain-errors"
)

// Clock returns the current time.
type Clock func() time.Time

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "revocation ttl must be positive")
	}
	return nil
}
