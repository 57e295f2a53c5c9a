package gateway

import (
	"errors"
	"fmt"

	"github.com/relaygate/gateway/internal/gwerrors"
)

var (
	errMissingToken            = errors.New("missing bearer token")
	errUnexpectedSigningMethod = errors.New("unexpected JWT signing method")
)

func notFoundError(id string) *gwerrors.Error {
	return gwerrors.New(gwerrors.NotFound, fmt.Sprintf("model %q not found", id))
}

func authFailedError(cause error) *gwerrors.Error {
	return gwerrors.New(gwerrors.AuthFailed, "authentication required").WithCause(cause)
}
