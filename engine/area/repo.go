package area

import (
	"context"
	"errors"

	"github.com/hookline/hookline/engine/core"
)

var ErrNotFound = errors.New("area not found")

// Repository is the persistence port the supervisor and CLI read areas
// through. ListAll returns every stored area; the supervisor diffs that set
// against its running evaluators on each reconcile pass.
type Repository interface {
	ListAll(ctx context.Context) ([]*Area, error)
	Get(ctx context.Context, id core.ID) (*Area, error)
	Upsert(ctx context.Context, a *Area) error
	Delete(ctx context.Context, id core.ID) error
}

// Credential is a user's stored token pair for one upstream service.
type Credential struct {
	AccessToken  string
	RefreshToken string
}

// CredentialResolver looks up the token to inject into component configs.
// Absence is not an error: a nil credential with a nil error means the user
// never linked the service, and the component receives a null token.
// Resolution happens on every firing so revocations and refreshes take effect
// without restarting evaluators.
type CredentialResolver interface {
	Resolve(ctx context.Context, userID core.ID, service core.ServiceID) (*Credential, error)
}
