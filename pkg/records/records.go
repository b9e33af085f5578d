// Package records is the client for the external patient-record
// provider (Eka Care developer APIs). It owns its bearer-token state,
// re-authenticating ahead of expiry and retrying a rejected call once
// after a fresh login. Healthcare tools treat any fault from this
// package as a signal to fall back to local cached data.
package records

import (
	"errors"
	"time"
)

// DefaultBaseURL is the provider's API root.
const DefaultBaseURL = "https://dev.eka.care/api/v1"

// refreshMargin is how long before literal expiry a token is treated
// as expired.
const refreshMargin = 5 * time.Minute

// ErrAuthFailed is returned when neither a refresh nor a fresh login
// produced a usable token.
var ErrAuthFailed = errors.New("records: authentication failed")

// Credentials holds the provider credentials. Username and password
// are optional; without them the client-credentials flow is used.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}
