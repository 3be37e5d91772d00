package outbound

type TokenClaims struct {
	OperatorID string `json:"operator_id"`
	Role       string `json:"role"`
	Channel    string `json:"channel"`
}

type TokenService interface {
	GenerateAccessToken(claims TokenClaims) (string, error)
	ValidateAccessToken(token string) (*TokenClaims, error)
}
