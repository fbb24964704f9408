package testutil

import (
	"context"

	"socialapp/internal/auth"
)

// StaticVerifier maps bearer tokens to subject ids.
type StaticVerifier map[string]string

// Verify returns the subject registered for credential.
func (v StaticVerifier) Verify(_ context.Context, credential string) (string, error) {
	subject, ok := v[credential]
	if !ok {
		return "", auth.ErrInvalidCredential
	}
	return subject, nil
}
