package service

import (
	"context"
	"strings"
	"time"

	"capstone/llm"
)

const keyCheckTimeout = 15 * time.Second

type KeyService struct {
	gateway llm.Gateway
}

func NewKeyService(gateway llm.Gateway) *KeyService {
	return &KeyService{gateway: gateway}
}

// Validate asks the provider whether apiKey is usable.
func (s *KeyService) Validate(ctx context.Context, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return newError(BadRequest, "API key cannot be empty.", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, keyCheckTimeout)
	defer cancel()

	if err := s.gateway.ValidateKey(ctx, apiKey); err != nil {
		if llm.IsKeyError(err) {
			return newError(Unauthorized, "The provided API key is invalid.", err)
		}
		return newError(Internal, "Could not validate the API key, please try again.", err)
	}
	return nil
}
