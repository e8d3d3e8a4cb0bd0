package models

// User, Franchise and Vendor are owned by the account and catalog services.
// This service only reads them.

// User is an account that can receive notifications.
type User struct {
	ID          string `gorm:"type:varchar(128);primaryKey" json:"id"`
	Name        string `gorm:"type:varchar(256)" json:"name"`
	Role        Role   `gorm:"type:varchar(32);not null;index" json:"role"`
	FranchiseID string `gorm:"type:varchar(128);index" json:"franchise_id,omitempty"`
	VendorID    string `gorm:"type:varchar(128);index" json:"vendor_id,omitempty"`
	Active      bool   `gorm:"not null;default:true" json:"active"`
}

// Claim views the user the way a request from that user would present itself.
func (u User) Claim() Claim {
	return Claim{
		UserID:      u.ID,
		Name:        u.Name,
		Role:        u.Role,
		FranchiseID: u.FranchiseID,
		VendorID:    u.VendorID,
	}
}

type Franchise struct {
	ID       string `gorm:"type:varchar(128);primaryKey" json:"id"`
	Name     string `gorm:"type:varchar(256);not null" json:"name"`
	VendorID string `gorm:"type:varchar(128);index" json:"vendor_id"`
}

type Vendor struct {
	ID   string `gorm:"type:varchar(128);primaryKey" json:"id"`
	Name string `gorm:"type:varchar(256);not null" json:"name"`
}
