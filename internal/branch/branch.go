package branch

import (
	"context"
	"strings"

	"github.com/mesaops/mesa/internal/config"
	"go.uber.org/fx"
)

type contextKey struct{}

// WithBranch stores an explicit branch id override on the context.
func WithBranch(ctx context.Context, branchID string) context.Context {
	branchID = strings.TrimSpace(branchID)
	if branchID == "" {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, branchID)
}

// FromContext returns the branch id carried on the context, if any.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(contextKey{}).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// Resolver yields the effective branch scope for remote operations: a
// context override wins, then the configured default. An empty result is
// legal; the remote service infers scope from the session in that case.
type Resolver struct {
	defaultID string
}

func NewResolver(cfg config.Config) *Resolver {
	return &Resolver{defaultID: strings.TrimSpace(cfg.DefaultBranchID)}
}

func (r *Resolver) EffectiveID(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok {
		return id
	}
	if r == nil {
		return ""
	}
	return r.defaultID
}

var Module = fx.Module("branch",
	fx.Provide(NewResolver),
)
