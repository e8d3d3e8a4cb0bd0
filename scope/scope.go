// Package scope decides which orders, discrepancies and users a claim can see.
// It is the single place where role rules live; list queries, transition
// guards and notification recipients all ask it.
package scope

import (
	"supply-service/models"
)

// Resource is anything owned by a franchise and served by a vendor.
type Resource interface {
	OwnerFranchiseID() string
	OwnerVendorID() string
}

// CanSee reports whether claim may read r.
func CanSee(claim models.Claim, r Resource) bool {
	switch {
	case claim.Role == models.RoleAdmin, claim.Role == models.RoleAuditor:
		return true
	case claim.Role.IsFranchiseSide():
		return claim.ActsForFranchise(r.OwnerFranchiseID())
	case claim.Role.IsVendorSide():
		return claim.ActsForVendor(r.OwnerVendorID())
	}
	return false
}

// Filter keeps the items claim can see, preserving order.
func Filter[T Resource](claim models.Claim, items []T) []T {
	visible := make([]T, 0, len(items))
	for _, it := range items {
		if CanSee(claim, it) {
			visible = append(visible, it)
		}
	}
	return visible
}

// Predicate is the query form of CanSee, for stores that filter server-side.
// Exactly one of the fields applies: Unrestricted, FranchiseID, VendorIDs, or
// Deny when none of the others is set.
type Predicate struct {
	Unrestricted bool
	FranchiseID  string
	VendorIDs    []string
}

// Deny reports whether the predicate matches nothing.
func (p Predicate) Deny() bool {
	return !p.Unrestricted && p.FranchiseID == "" && len(p.VendorIDs) == 0
}

// For builds the predicate matching exactly what CanSee allows.
func For(claim models.Claim) Predicate {
	switch {
	case claim.Role == models.RoleAdmin, claim.Role == models.RoleAuditor:
		return Predicate{Unrestricted: true}
	case claim.Role.IsFranchiseSide():
		return Predicate{FranchiseID: claim.FranchiseID}
	case claim.Role.IsVendorSide():
		return Predicate{VendorIDs: claim.VendorIDs()}
	}
	return Predicate{}
}

// Audience selects which side of an order a notification goes to.
type Audience uint8

const (
	AudienceFranchise Audience = 1 << iota
	AudienceVendor
	AudienceAdmin
)

// Recipients returns the ids of active users in audience who can see r.
// Admins are only included through AudienceAdmin even though they see
// everything.
func Recipients(users []models.User, r Resource, audience Audience) []string {
	seen := make(map[string]struct{}, len(users))
	var ids []string
	for _, u := range users {
		if !u.Active {
			continue
		}
		if _, dup := seen[u.ID]; dup {
			continue
		}
		if !inAudience(u.Role, audience) {
			continue
		}
		if !CanSee(u.Claim(), r) {
			continue
		}
		seen[u.ID] = struct{}{}
		ids = append(ids, u.ID)
	}
	return ids
}

func inAudience(role models.Role, audience Audience) bool {
	switch {
	case role.IsFranchiseSide():
		return audience&AudienceFranchise != 0
	case role.IsVendorSide():
		return audience&AudienceVendor != 0
	case role == models.RoleAdmin:
		return audience&AudienceAdmin != 0
	}
	return false
}
