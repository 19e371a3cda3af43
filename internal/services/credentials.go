package services

import (
	"context"
	"fmt"
	"strings"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"
)

type CredentialResolver interface {
	// Resolve returns the tenant's gateway access token or
	// domain.ErrGatewayNotConfigured.
	Resolve(ctx context.Context, tenantID string) (string, error)
}

// storeCredentialResolver reads the credentials row on every call so a
// rotated token takes effect immediately.
type storeCredentialResolver struct {
	repo repository.CredentialRepository
}

func NewCredentialResolver(repo repository.CredentialRepository) CredentialResolver {
	return &storeCredentialResolver{repo: repo}
}

func (r *storeCredentialResolver) Resolve(ctx context.Context, tenantID string) (string, error) {
	if tenantID == "" {
		return "", domain.ErrGatewayNotConfigured
	}

	creds, err := r.repo.FindByTenant(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("load gateway credentials: %w", err)
	}
	if creds == nil || creds.TenantID != tenantID {
		return "", domain.ErrGatewayNotConfigured
	}
	if !creds.Enabled || strings.TrimSpace(creds.AccessToken) == "" {
		return "", domain.ErrGatewayNotConfigured
	}
	return creds.AccessToken, nil
}
