package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"capstone/model"
	"capstone/platform"
	"capstone/store"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var logger = platform.Logger

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Mailer delivers a single plain-text message.
type Mailer interface {
	Send(to, subject, body string) error
}

type UserService struct {
	users  store.UserStore
	tokens *TokenService
	mailer Mailer
}

// NewUserService builds the account service. mailer may be nil, in which
// case no welcome mail is sent.
func NewUserService(users store.UserStore, tokens *TokenService, mailer Mailer) *UserService {
	return &UserService{users: users, tokens: tokens, mailer: mailer}
}

func (s *UserService) Register(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, newError(BadRequest, "Email and password are required.", nil)
	}
	if !emailRegex.MatchString(email) {
		return nil, newError(BadRequest, "Invalid email address.", nil)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, newError(Internal, "An internal server error occurred.", err)
	}

	user := &model.User{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  string(hashedPassword),
		CreatedAt: time.Now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, newError(Conflict, "User with this email already exists.", err)
		}
		return nil, newError(Internal, "An internal server error occurred.", err)
	}

	if s.mailer != nil {
		go func() {
			if err := s.mailer.Send(user.Email, "Welcome", "Your account has been created. Happy chatting!"); err != nil {
				logger.Warnf("[%s] failed to send welcome mail: %s", user.ID, err)
			}
		}()
	}
	return user, nil
}

// Login checks the credentials and returns a signed access token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", newError(BadRequest, "Email and password are required.", nil)
	}

	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", newError(Unauthorized, "Invalid credentials", err)
		}
		return "", newError(Internal, "Failed to get user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", newError(Unauthorized, "Invalid credentials", err)
	}

	token, err := s.tokens.CreateToken(user.ID, user.Email)
	if err != nil {
		return "", newError(Internal, "Failed to generate token", err)
	}
	return token.AccessToken, nil
}
