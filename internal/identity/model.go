package identity

import "time"

// User represents a phone-number-based account.
type User struct {
	ID            string
	Phone         string
	NewPhone      string
	PhoneVerified bool
	PasswordHash  []byte
	// Token is the access-token fingerprint: the exact token last issued to
	// this user. Logout clears it, which makes any still-signed token
	// unusable on the cross-check path.
	Token     string
	RoleID    string
	CreatedAt time.Time
}
