package policies

import (
	"context"

	"villabook/internal/domain/properties"
)

// PropertyReader loads properties for read-only views. Implementations may cache;
// checkout never reads through it.
type PropertyReader interface {
	Property(ctx context.Context, id properties.PropertyID) (*properties.Property, error)
}

// UserDirectory resolves contact data of a user.
type UserDirectory interface {
	Contact(ctx context.Context, userID string) (Customer, error)
}
