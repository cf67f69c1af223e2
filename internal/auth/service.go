package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

const tokenTTL = 24 * time.Hour

// Identity is what a verified bearer credential says about its holder.
type Identity struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
}

// Issuer signs and verifies HS256 bearer tokens.
type Issuer struct {
	jwtSecret []byte
	now       func() time.Time
}

func NewIssuer(jwtSecret string) *Issuer {
	return &Issuer{
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
}

func (s *Issuer) Issue(userID, name string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"name": name,
		"iat":  now.Unix(),
		"exp":  now.Add(tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

func (s *Issuer) Validate(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	return identityFrom(claims)
}

// Subject reads the user id out of a token without verifying it. Clients
// use it to learn their own identity; only the relay can check the
// signature.
func Subject(tokenString string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	id, err := identityFrom(claims)
	if err != nil {
		return "", err
	}
	return id.UserID, nil
}

func identityFrom(claims jwt.MapClaims) (Identity, error) {
	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	name, _ := claims["name"].(string)
	if name == "" {
		name = userID
	}
	return Identity{UserID: userID, Name: name}, nil
}
