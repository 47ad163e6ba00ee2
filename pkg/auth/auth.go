// Package auth defines the capability set design note §9 calls the
// "dynamic dispatch of authenticators": a single interface the
// JASMIN-specific account/token backend (out of core per §1) is only one
// possible implementation of. Components depend on this interface and
// have it injected at startup.
package auth

import "context"

// Role is the caller's standing with respect to a group, used by the
// catalog's delete permission policy.
type Role string

const (
	RoleUser    Role = "user"
	RoleDeputy  Role = "deputy"
	RoleManager Role = "manager"
)

// Principal identifies an authenticated caller.
type Principal struct {
	User   string
	Groups []string
}

// Capability is the full authenticator/authorizer contract; a production
// deployment injects whatever backend (OAuth, LDAP, site-specific account
// service) implements it.
type Capability interface {
	// AuthenticateToken exchanges a bearer token for the calling Principal.
	AuthenticateToken(ctx context.Context, token string) (Principal, error)
	// AuthenticateGroup reports whether principal belongs to group.
	AuthenticateGroup(ctx context.Context, principal Principal, group string) (bool, error)
	// AuthenticateCollection reports whether principal may act on
	// holdingID (used for the get/delete group-match policy in §4.4).
	AuthenticateCollection(ctx context.Context, principal Principal, holdingID int64) (bool, error)
	// RoleOf reports principal's role within group.
	RoleOf(ctx context.Context, principal Principal, group string) (Role, error)
}

// Default is the capability for deployments with no role backend
// configured: it takes the token as the user name, admits a group when the
// principal lists it or lists no groups at all, admits every holding, and
// reports RoleUser for every group.
type Default struct{}

func (Default) AuthenticateToken(ctx context.Context, token string) (Principal, error) {
	return Principal{User: token}, nil
}

func (Default) AuthenticateGroup(ctx context.Context, principal Principal, group string) (bool, error) {
	for _, g := range principal.Groups {
		if g == group {
			return true, nil
		}
	}

	return len(principal.Groups) == 0, nil
}

func (Default) AuthenticateCollection(ctx context.Context, principal Principal, holdingID int64) (bool, error) {
	return true, nil
}

func (Default) RoleOf(ctx context.Context, principal Principal, group string) (Role, error) {
	return RoleUser, nil
}
