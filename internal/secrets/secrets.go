// Package secrets resolves sensitive configuration values.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"

	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/logger"
)

// Store returns the plaintext of a named secret.
type Store interface {
	Get(ctx context.Context, name string) (string, error)
}

// GCPStore reads the latest version of secrets from Google Secret Manager.
type GCPStore struct {
	client    *secretmanager.Client
	projectID string
	log       logger.LoggerInterface
}

func NewGCPStore(ctx context.Context, projectID string, log logger.LoggerInterface) (*GCPStore, error) {
	if projectID == "" {
		return nil, apperror.Validation(apperror.CodeConfigurationError, "gcp project id is empty")
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, apperror.External(apperror.CodeExternalServiceError, "secretmanager client", err)
	}
	return &GCPStore{client: client, projectID: projectID, log: log}, nil
}

func (g *GCPStore) Get(ctx context.Context, name string) (string, error) {
	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", g.projectID, name),
	}
	result, err := g.client.AccessSecretVersion(ctx, req)
	if err != nil {
		return "", apperror.External(apperror.CodeExternalServiceError, "access secret "+name, err)
	}
	g.log.Debug(ctx, "secret resolved", "secret", name, "project", g.projectID)
	return strings.TrimSpace(string(result.Payload.Data)), nil
}

func (g *GCPStore) Close() error {
	return g.client.Close()
}

// EnvStore reads secrets from environment variables. Names are upper-cased
// and dashes become underscores, so "signer-key" reads SIGNER_KEY.
type EnvStore struct {
	Prefix string
}

func (e EnvStore) Get(_ context.Context, name string) (string, error) {
	key := e.Prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", apperror.NotFound(apperror.CodeNotFound, "env secret "+key)
	}
	return strings.TrimSpace(v), nil
}
