package service

import (
	"github.com/MKhiriev/go-remind-sync/internal/config"
	"github.com/MKhiriev/go-remind-sync/internal/logger"
	"github.com/MKhiriev/go-remind-sync/internal/utils"
)

// AuthService verifies bearer tokens issued by the external authentication
// service. This engine never issues tokens itself.
type AuthService struct {
	tokenSignKey string
	tokenIssuer  string
	logger       *logger.Logger
}

// NewAuthService constructs the token verifier from auth configuration.
func NewAuthService(cfg config.Auth, log *logger.Logger) *AuthService {
	return &AuthService{
		tokenSignKey: cfg.TokenSignKey,
		tokenIssuer:  cfg.TokenIssuer,
		logger:       log,
	}
}

// ParseToken validates the token signature, issuer and expiry, and returns
// the authenticated user id from the subject claim.
func (a *AuthService) ParseToken(tokenString string) (int64, error) {
	return utils.ValidateAndParseJWTToken(tokenString, a.tokenSignKey, a.tokenIssuer)
}
