package domain

// AuthUser is the authenticated caller resolved from a bearer token.
// It is passed explicitly into services rather than read from ambient
// request state, so every operation's authorization input is visible in
// its signature.
type AuthUser struct {
	ID    string // Supabase user id (uuid)
	Email string
	Phone string
}
