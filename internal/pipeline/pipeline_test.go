package pipeline

import (
	"testing"

	"github.com/scenegenhq/sgs/internal/domain"
	sgserrors "github.com/scenegenhq/sgs/pkg/errors"
)

func TestRegistrySelectFirstMatch(t *testing.T) {
	r := NewRegistry()
	r.Register(NewVideoPipeline())
	p, err := r.Select(domain.SceneKindVideo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.CanHandle(domain.SceneKindVideo) {
		t.Fatalf("selected pipeline does not handle %q", domain.SceneKindVideo)
	}
}

func TestRegistrySelectNoPipeline(t *testing.T) {
	r := NewRegistry()
	r.Register(NewVideoPipeline())
	_, err := r.Select(domain.SceneKindTransition)
	if err == nil {
		t.Fatal("expected an error for an unregistered kind")
	}
	apiErr, ok := err.(*sgserrors.APIError)
	if !ok {
		t.Fatalf("expected *errors.APIError, got %T", err)
	}
	if apiErr.Code != sgserrors.ErrNoPipeline.Code {
		t.Errorf("expected code %q, got %q", sgserrors.ErrNoPipeline.Code, apiErr.Code)
	}
}
