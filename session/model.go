package session

// Record is one device session: the refresh token issued to a single device,
// identified by the token's jti. Only the SHA-256 of the token is persisted.
type Record struct {
	UserID    string
	JTI       string
	TokenHash [32]byte

	CreatedAt int64
	ExpiresAt int64
}
