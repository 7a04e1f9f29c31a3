// Package repository defines the storage interfaces used by the session layer.
package repository

import (
	"context"

	"github.com/sakif/contact-insight/internal/model"
)

// CredentialRepository stores at most one Credential per browser session.
//
// Get returns an apperror.ErrNotFound kind when the session holds no
// credential (never signed in, or signed out).
type CredentialRepository interface {
	Save(ctx context.Context, sessionID string, cred *model.Credential) error
	Get(ctx context.Context, sessionID string) (*model.Credential, error)
	Delete(ctx context.Context, sessionID string) error
}
