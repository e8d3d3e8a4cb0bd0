package models

import "strings"

// Role is the actor kind carried on an identity claim.
type Role string

const (
	RoleAdmin          Role = "ADMIN"
	RoleFranchise      Role = "FRANCHISE"
	RoleFranchiseStaff Role = "FRANCHISE_STAFF"
	RoleKitchen        Role = "KITCHEN"
	RoleKitchenStaff   Role = "KITCHEN_STAFF"
	RoleAuditor        Role = "AUDITOR"
)

var roleAliases = map[string]Role{
	"ADMIN":           RoleAdmin,
	"FRANCHISE":       RoleFranchise,
	"FRANCHISE_STAFF": RoleFranchiseStaff,
	"KITCHEN":         RoleKitchen,
	"VENDOR":          RoleKitchen,
	"KITCHEN_STAFF":   RoleKitchenStaff,
	"VENDOR_STAFF":    RoleKitchenStaff,
	"AUDITOR":         RoleAuditor,
}

// ParseRole normalises a role header value such as "kitchen-staff".
func ParseRole(s string) (Role, bool) {
	key := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	role, ok := roleAliases[key]
	return role, ok
}

func (r Role) IsFranchiseSide() bool {
	return r == RoleFranchise || r == RoleFranchiseStaff
}

func (r Role) IsVendorSide() bool {
	return r == RoleKitchen || r == RoleKitchenStaff
}

// Claim is the caller identity, already validated by the gateway.
type Claim struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Role        Role   `json:"role"`
	FranchiseID string `json:"franchise_id,omitempty"`
	VendorID    string `json:"vendor_id,omitempty"`
}

// VendorIDs lists the vendor ids this claim acts for. The owning kitchen
// account's own user id counts as its vendor id.
func (c Claim) VendorIDs() []string {
	if !c.Role.IsVendorSide() {
		return nil
	}
	var ids []string
	if c.VendorID != "" {
		ids = append(ids, c.VendorID)
	}
	if c.Role == RoleKitchen && c.UserID != "" && c.UserID != c.VendorID {
		ids = append(ids, c.UserID)
	}
	return ids
}

// ActsForVendor reports whether the claim may act on behalf of vendorID.
func (c Claim) ActsForVendor(vendorID string) bool {
	if vendorID == "" {
		return false
	}
	for _, id := range c.VendorIDs() {
		if id == vendorID {
			return true
		}
	}
	return false
}

// ActsForFranchise reports whether the claim belongs to franchiseID.
func (c Claim) ActsForFranchise(franchiseID string) bool {
	return c.Role.IsFranchiseSide() && franchiseID != "" && c.FranchiseID == franchiseID
}

// DisplayName falls back to the user id when the gateway sent no name.
func (c Claim) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.UserID
}
