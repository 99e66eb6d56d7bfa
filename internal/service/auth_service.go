package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"glasses-cloud-be/internal/repository/contract"
)

var (
	ErrUnknownApp    = errors.New("unknown package name")
	ErrBadAPIKey     = errors.New("api key mismatch")
	ErrBadToken      = errors.New("invalid token")
	ErrTokenMismatch = errors.New("token subject mismatch")
)

type IAuthService interface {
	// ValidateAppKey checks an app's plaintext API key against the stored
	// bcrypt hash.
	ValidateAppKey(packageName, apiKey string) error
	// IssueSessionToken mints a short-lived token apps can present to the
	// REST storage endpoints on behalf of a session.
	IssueSessionToken(userID, sessionID string) (string, error)
	// ValidateCoreToken verifies a device's bearer token and confirms it
	// was issued to userID.
	ValidateCoreToken(tokenString, userID string) error
}

type authService struct {
	apps      contract.IAppRepository
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewAuthService(apps contract.IAppRepository, jwtSecret string) IAuthService {
	return &authService{
		apps:      apps,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  24 * time.Hour,
	}
}

func (s *authService) ValidateAppKey(packageName, apiKey string) error {
	app, err := s.apps.FindByPackage(packageName)
	if err != nil {
		return ErrUnknownApp
	}
	if err := bcrypt.CompareHashAndPassword([]byte(app.HashedAPIKey), []byte(apiKey)); err != nil {
		return ErrBadAPIKey
	}
	return nil
}

func (s *authService) IssueSessionToken(userID, sessionID string) (string, error) {
	claims := jwt.MapClaims{
		"sub":        userID,
		"session_id": sessionID,
		"iat":        time.Now().Unix(),
		"exp":        time.Now().Add(s.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *authService) ValidateCoreToken(tokenString, userID string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return ErrBadToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ErrBadToken
	}
	if sub, _ := claims["sub"].(string); sub != userID {
		return ErrTokenMismatch
	}
	return nil
}
