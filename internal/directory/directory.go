// Package directory fetches group membership from the identity provider.
package directory

import (
	"context"

	"github.com/CaputoDavide93/new-starters-meetup/internal/model"
)

// Directory lists the members of a directory group. Implementations own
// pagination, auth and rate limiting; callers consume the flattened list.
type Directory interface {
	GroupMembers(ctx context.Context, groupID string) ([]model.Member, error)
}
