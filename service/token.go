package service

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
	uuid "github.com/google/uuid"
)

// TokenDetails ...
type TokenDetails struct {
	AccessToken string
	AccessUUID  string
	AtExpires   int64
}

// AccessDetails is what a verified token says about its bearer.
type AccessDetails struct {
	AccessUUID string
	UserID     string
	Email      string
}

// TokenService issues and verifies HS256 access tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// CreateToken ...
func (t *TokenService) CreateToken(userID, email string) (*TokenDetails, error) {
	td := &TokenDetails{}
	td.AtExpires = time.Now().Add(t.ttl).Unix()
	td.AccessUUID = uuid.New().String()

	var err error
	atClaims := jwt.MapClaims{}
	atClaims["authorized"] = true
	atClaims["access_uuid"] = td.AccessUUID
	atClaims["user_id"] = userID
	atClaims["email"] = email
	atClaims["exp"] = td.AtExpires

	at := jwt.NewWithClaims(jwt.SigningMethodHS256, atClaims)
	td.AccessToken, err = at.SignedString(t.secret)
	if err != nil {
		return nil, err
	}
	return td, nil
}

// ExtractToken returns the token of an "Authorization: Bearer <token>" header.
func (t *TokenService) ExtractToken(r *http.Request) string {
	bearToken := r.Header.Get("Authorization")
	strArr := strings.Split(bearToken, " ")
	if len(strArr) == 2 {
		return strArr[1]
	}
	return ""
}

// VerifyToken ...
func (t *TokenService) VerifyToken(tokenString string) (*jwt.Token, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return token, nil
}

// ExtractTokenMetadata verifies the request's bearer token and reads its claims.
func (t *TokenService) ExtractTokenMetadata(r *http.Request) (*AccessDetails, error) {
	token, err := t.VerifyToken(t.ExtractToken(r))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}
	accessUUID, ok := claims["access_uuid"].(string)
	if !ok {
		return nil, fmt.Errorf("token has no access_uuid")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("token has no user_id")
	}
	email, _ := claims["email"].(string)
	return &AccessDetails{
		AccessUUID: accessUUID,
		UserID:     userID,
		Email:      email,
	}, nil
}

// Refresh issues a new token for the bearer of a still valid one.
func (t *TokenService) Refresh(r *http.Request) (string, error) {
	details, err := t.ExtractTokenMetadata(r)
	if err != nil {
		return "", newError(Unauthorized, "Invalid authorization, please login again", err)
	}
	td, err := t.CreateToken(details.UserID, details.Email)
	if err != nil {
		return "", newError(Internal, "Failed to create token", err)
	}
	return td.AccessToken, nil
}
