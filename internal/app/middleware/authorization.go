package middleware

import (
	"context"

	"villabook/internal/app/apperr"
	"villabook/internal/app/commands"
	"villabook/internal/app/queries"
)

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		return dispatchFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		return askFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}

// RoleRestricted is implemented by messages that only a given role may send.
type RoleRestricted interface {
	RequiredRole() string
	ActorRole() string
}

// Authenticated is implemented by messages that need a known caller.
type Authenticated interface {
	ActorID() string
}

// RoleAuthorizer enforces Authenticated and RoleRestricted messages.
type RoleAuthorizer struct{}

func (RoleAuthorizer) Authorize(_ context.Context, message any) error {
	if m, ok := message.(Authenticated); ok && m.ActorID() == "" {
		return apperr.Authentication("auth_required", "authentication required")
	}
	if m, ok := message.(RoleRestricted); ok {
		if role := m.RequiredRole(); role != "" && m.ActorRole() != role {
			return apperr.New(apperr.KindAuthorization, "forbidden", "insufficient permissions")
		}
	}
	return nil
}
