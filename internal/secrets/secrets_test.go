package secrets

import (
	"context"
	"testing"

	"github.com/fd1az/arbguard/internal/apperror"
)

func TestEnvStore(t *testing.T) {
	t.Setenv("ARB_SIGNER_KEY", "  abc123 \n")

	s := EnvStore{Prefix: "ARB_"}
	got, err := s.Get(context.Background(), "signer-key")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "abc123" {
		t.Errorf("Get() = %q, want %q", got, "abc123")
	}

	_, err = s.Get(context.Background(), "missing")
	if apperror.GetCode(err) != apperror.CodeNotFound {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeNotFound)
	}
}

func TestNewGCPStoreRequiresProject(t *testing.T) {
	if _, err := NewGCPStore(context.Background(), "", nil); err == nil {
		t.Fatal("expected error for empty project")
	}
}
