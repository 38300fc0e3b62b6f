package model

// Roles stored in users.role and carried in the access token.
const (
	RoleAdmin    = "ADMIN"
	RoleOwner    = "OWNER"
	RoleCustomer = "CUSTOMER"
)

// User represents an application user record as stored in the `users`
// table.  Handlers define their own response types; this struct never
// leaves the server.
//
// Fields:
//  Username     – primary key.
//  PasswordHash – hex encoded scrypt key.
//  Salt         – hex encoded random salt used for the key.
//  Role         – ADMIN, OWNER or CUSTOMER.
//  ShopID       – shop managed by an OWNER (null for other roles).
type User struct {
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
	Salt         string `db:"salt"`
	Role         string `db:"role"`
	ShopID       *int64 `db:"shop_id"`
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the token handed to the client is stored.  Times are unix
// seconds.
type RefreshToken struct {
	ID        int64  `db:"id"`
	Username  string `db:"username"`
	TokenHash string `db:"token_hash"`
	ExpiresAt int64  `db:"expires_at"`
	RevokedAt *int64 `db:"revoked_at"`
}
