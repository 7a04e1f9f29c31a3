// Package model defines the data structures used throughout the application.
package model

import "time"

// Profile is the signed-in Google account as reported by the user-info endpoint.
//
// A Profile is fetched once per Credential and never mutated afterwards. It is
// discarded together with the Credential on sign-out.
type Profile struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"` // Avatar image URL
}

// Credential is the OAuth access credential obtained from Google.
//
// Only AccessToken is required to call the APIs. Expiry is recorded but not
// enforced: when Google rejects an expired token the fetch fails and the user
// signs in again.
type Credential struct {
	AccessToken  string    `json:"-"`
	TokenType    string    `json:"tokenType"`
	RefreshToken string    `json:"-"`
	Expiry       time.Time `json:"expiry"`
}

// Valid reports whether the credential carries a bearer token at all.
func (c *Credential) Valid() bool {
	return c != nil && c.AccessToken != ""
}
