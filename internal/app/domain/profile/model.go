package profile

import "time"

// Profile is a wallet-keyed user account.
type Profile struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	Username      string    `json:"username,omitempty"`
	Nonce         string    `json:"-"`
	Points        int       `json:"points"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Session records an issued JWT by its hash so tokens can be revoked.
type Session struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	TokenHash     string    `json:"-"`
	ExpiresAt     time.Time `json:"expires_at"`
	LastSeenAt    time.Time `json:"last_seen_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// Expired reports whether the session is past its expiry.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
