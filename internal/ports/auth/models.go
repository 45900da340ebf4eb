package auth

// Claims representa la identidad verificada extraída del token.
// Role es un tag plano (user, vet, clinic, market_owner, admin); sin jerarquía.
type Claims struct {
	UserID string
	Role   string
}
