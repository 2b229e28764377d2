package ai

import (
	"github.com/arjunms/sqlscope/internal/ai/aierrors"
)

// The error taxonomy lives in the leaf package aierrors so provider
// subpackages can import it without creating an import cycle through the
// factory. These aliases keep the ai.Err* / ai.ClassifyError API intact.
var (
	ErrProviderUnavailable = aierrors.ErrProviderUnavailable
	ErrInferenceTimeout    = aierrors.ErrInferenceTimeout
	ErrInvalidResponse     = aierrors.ErrInvalidResponse
)

// ClassifyError maps transport-level errors to sentinel errors so handlers
// can pick a status code without knowing the provider.
func ClassifyError(err error) error {
	return aierrors.ClassifyError(err)
}
