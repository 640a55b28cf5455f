package model

// TokenManager issues and validates the access tokens that identify the
// owner of a control API call.
type TokenManager interface {
	GenerateAccessToken(ownerID string) (string, error)
	ParseAccessToken(token string) (string, error)
}
