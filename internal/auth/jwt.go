package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"ops_gateway/internal/config"
	"ops_gateway/internal/models"
	"ops_gateway/internal/utils"
)

const adminTokenTTL = 1 * time.Hour

// ErrInvalidCredentials is returned for bad email/password combinations
// and for disabled accounts. The message is deliberately uniform.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AdminStore resolves admin accounts for management authentication.
type AdminStore interface {
	GetAdminUserByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	UpdateAdminUserLastLogin(ctx context.Context, id uuid.UUID) error
}

// AdminClaims are the JWT claims embedded in admin session tokens
type AdminClaims struct {
	AdminID string   `json:"admin_id"`
	Email   string   `json:"email"`
	Roles   []string `json:"roles"`
	jwt.RegisteredClaims
}

// GenerateAdminJWTWithPassword authenticates an admin user by email and
// password and issues a signed session token.
func GenerateAdminJWTWithPassword(ctx context.Context, email, password string, store AdminStore, cfg *config.Config) (string, int64, error) {
	user, err := store.GetAdminUserByEmail(ctx, email)
	if err != nil {
		return "", 0, ErrInvalidCredentials
	}

	if !user.IsValid() {
		return "", 0, ErrInvalidCredentials
	}

	valid, err := utils.VerifyPasswordArgon2(password, user.PasswordHash)
	if err != nil || !valid {
		return "", 0, ErrInvalidCredentials
	}

	// Best-effort; login still succeeds if the timestamp update fails.
	_ = store.UpdateAdminUserLastLogin(ctx, user.ID)

	return generateAdminJWT(user.ID.String(), user.Email, user.Roles, cfg)
}

// generateAdminJWT signs a session token for the given admin identity.
func generateAdminJWT(adminID, email string, roles []string, cfg *config.Config) (string, int64, error) {
	expiresAt := time.Now().Add(adminTokenTTL)

	claims := &AdminClaims{
		AdminID: adminID,
		Email:   email,
		Roles:   roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(cfg.JWTSecret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}
	return signedToken, expiresAt.Unix(), nil
}

// ValidateAdminJWT verifies an admin session token and returns its claims.
func ValidateAdminJWT(tokenString string, cfg *config.Config) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.JWTSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
