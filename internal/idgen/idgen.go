// Package idgen generates the session and handoff identifiers used
// throughout the engine (spec section 3.2: "id | uuid-like
// identifier"). Every id it produces already satisfies idrule.Validate.
package idgen

import "github.com/google/uuid"

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.New().String()
}
