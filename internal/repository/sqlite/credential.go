package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/contact-insight/internal/apperror"
	"github.com/sakif/contact-insight/internal/model"
	"github.com/sakif/contact-insight/internal/repository"
)

// compile-time check that *DB implements repository.CredentialRepository
var _ repository.CredentialRepository = (*DB)(nil)

// Save stores cred for sessionID, replacing any credential the session held.
func (db *DB) Save(ctx context.Context, sessionID string, cred *model.Credential) error {
	if sessionID == "" {
		return apperror.ValidationFailed("sessionID", "session ID is required")
	}
	if !cred.Valid() {
		return apperror.ValidationFailed("accessToken", "access token is required")
	}

	var expiry *time.Time
	if !cred.Expiry.IsZero() {
		e := cred.Expiry.UTC()
		expiry = &e
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO credentials (session_id, access_token, token_type, refresh_token, expiry, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			access_token = excluded.access_token,
			token_type = excluded.token_type,
			refresh_token = excluded.refresh_token,
			expiry = excluded.expiry,
			created_at = excluded.created_at`,
		sessionID,
		cred.AccessToken,
		cred.TokenType,
		cred.RefreshToken,
		expiry,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving credential for session %s: %w", sessionID, err)
	}
	return nil
}

// Get returns the credential held by sessionID.
// Returns apperror.ErrNotFound if the session holds none.
func (db *DB) Get(ctx context.Context, sessionID string) (*model.Credential, error) {
	var (
		c      model.Credential
		expiry sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT access_token, token_type, refresh_token, expiry
		 FROM credentials WHERE session_id = ?`,
		sessionID,
	).Scan(&c.AccessToken, &c.TokenType, &c.RefreshToken, &expiry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("credential", sessionID)
		}
		return nil, fmt.Errorf("sqlite: getting credential for session %s: %w", sessionID, err)
	}
	if expiry.Valid {
		c.Expiry = expiry.Time
	}
	return &c, nil
}

// Delete removes the credential held by sessionID. Deleting a missing
// credential is not an error: sign-out is unconditional.
func (db *DB) Delete(ctx context.Context, sessionID string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM credentials WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting credential for session %s: %w", sessionID, err)
	}
	return nil
}
