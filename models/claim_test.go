package models_test

import (
	"testing"

	"supply-service/models"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want models.Role
		ok   bool
	}{
		{"admin", models.RoleAdmin, true},
		{"FRANCHISE", models.RoleFranchise, true},
		{"franchise-staff", models.RoleFranchiseStaff, true},
		{"kitchen", models.RoleKitchen, true},
		{"vendor", models.RoleKitchen, true},
		{" kitchen_staff ", models.RoleKitchenStaff, true},
		{"auditor", models.RoleAuditor, true},
		{"customer", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := models.ParseRole(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestClaimVendorIDs(t *testing.T) {
	owner := models.Claim{UserID: "k-1", Role: models.RoleKitchen, VendorID: "v-1"}
	assert.Equal(t, []string{"v-1", "k-1"}, owner.VendorIDs())
	assert.True(t, owner.ActsForVendor("k-1"))

	ownerNoVendor := models.Claim{UserID: "k-2", Role: models.RoleKitchen}
	assert.Equal(t, []string{"k-2"}, ownerNoVendor.VendorIDs())

	staff := models.Claim{UserID: "s-1", Role: models.RoleKitchenStaff, VendorID: "v-1"}
	assert.Equal(t, []string{"v-1"}, staff.VendorIDs())
	assert.False(t, staff.ActsForVendor("s-1"))

	franchise := models.Claim{UserID: "f-1", Role: models.RoleFranchise, FranchiseID: "fr-1", VendorID: "v-1"}
	assert.Empty(t, franchise.VendorIDs())
	assert.False(t, franchise.ActsForVendor("v-1"))
	assert.True(t, franchise.ActsForFranchise("fr-1"))
	assert.False(t, franchise.ActsForFranchise(""))
}
