package entitlement

import (
	"strings"

	"github.com/google/uuid"
	"github.com/relaypoint/backend/internal/domain/shared"
)

// AccountStatus represents the lifecycle state of an account
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountDisabled AccountStatus = "disabled"
)

// Account binds a platform identity to a tenant. It is the record the
// tenant guard resolves before any administrative read or write, and the
// key every quota/feature row hangs off.
type Account struct {
	shared.TenantEntity
	OwnerUserID uuid.UUID
	APIToken    string
	DisplayName string
	Status      AccountStatus
}

// NewAccount creates an active account bound to a tenant
func NewAccount(tenantID, ownerUserID uuid.UUID, apiToken, displayName string) (*Account, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if ownerUserID == uuid.Nil && apiToken == "" {
		return nil, shared.NewDomainError("INVALID_IDENTITY", "Account requires a user ID or an API token")
	}

	return &Account{
		TenantEntity: shared.NewTenantEntity(tenantID),
		OwnerUserID:  ownerUserID,
		APIToken:     apiToken,
		DisplayName:  displayName,
		Status:       AccountActive,
	}, nil
}

// IsActive returns true if the account is usable
func (a *Account) IsActive() bool {
	return a.Status == AccountActive
}

// Disable marks the account unusable without deleting its history
func (a *Account) Disable() {
	a.Status = AccountDisabled
	a.Touch()
}

// UserRefKind tags the two identifier shapes the platform accepts
type UserRefKind string

const (
	// RefPlatformUserID is a platform-issued user UUID
	RefPlatformUserID UserRefKind = "platform_user_id"

	// RefLegacyToken is an opaque API token issued by the legacy system
	RefLegacyToken UserRefKind = "legacy_token"
)

// UserRef is the tagged union of the identifier shapes accepted as "the
// user identifier" on administrative paths. It is parsed once at the
// boundary and resolved to a canonical account by the tenant guard, so
// no query ever string-matches both identity columns ad hoc.
type UserRef struct {
	Kind   UserRefKind
	UserID uuid.UUID
	Token  string
}

// ParseUserRef classifies a raw identifier. A value that parses as a UUID
// is a platform user id; anything else non-empty is a legacy token.
func ParseUserRef(raw string) (UserRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return UserRef{}, shared.NewDomainError("INVALID_IDENTITY", "User identifier cannot be empty")
	}
	if id, err := uuid.Parse(raw); err == nil {
		return UserRef{Kind: RefPlatformUserID, UserID: id}, nil
	}
	return UserRef{Kind: RefLegacyToken, Token: raw}, nil
}

// String returns the raw identifier for logging
func (r UserRef) String() string {
	if r.Kind == RefPlatformUserID {
		return r.UserID.String()
	}
	return r.Token
}

// Matches reports whether the reference identifies the given account
func (r UserRef) Matches(a *Account) bool {
	switch r.Kind {
	case RefPlatformUserID:
		return a.OwnerUserID == r.UserID
	case RefLegacyToken:
		return a.APIToken != "" && a.APIToken == r.Token
	}
	return false
}

// DirectoryUser is the record returned by the upstream identity provider
// for identities not yet provisioned locally.
type DirectoryUser struct {
	UserID      uuid.UUID
	DisplayName string
	Email       string
}
