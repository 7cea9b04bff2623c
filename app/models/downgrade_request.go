package models

import (
	"fmt"
	"time"
)

const (
	DowngradeStatusPending  = "pending"
	DowngradeStatusApproved = "approved"
	DowngradeStatusRejected = "rejected"
)

// DowngradeRequest records an owner's request to move a listing to a
// cheaper package while the policy requires admin approval.
//
// PendingKey is set to "<owner>:<business>" while the request is pending and
// cleared on decision; its unique index keeps at most one pending request
// per owner and listing.
type DowngradeRequest struct {
	ID                 string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerUserID        uint       `gorm:"not null;index" json:"ownerUserId"`
	BusinessID         uint       `gorm:"not null;index" json:"businessId"`
	CurrentPackageID   *uint      `json:"currentPackageId"`
	CurrentPackageName string     `gorm:"type:varchar(100);default:''" json:"currentPackageName"`
	TargetPackageID    uint       `gorm:"not null" json:"targetPackageId"`
	TargetPackageName  string     `gorm:"type:varchar(100);default:''" json:"targetPackageName"`
	Status             string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PendingKey         *string    `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	Version            int        `gorm:"not null;default:1" json:"version"`
	CreatedAt          time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	DecidedAt          *time.Time `gorm:"type:timestamp;default:null" json:"decidedAt"`
	DecidedByUserID    *uint      `json:"decidedByUserId"`
	DecidedByName      string     `gorm:"type:varchar(150);default:''" json:"decidedByName"`
}

// IsPending reports whether the request still awaits a decision.
func (r *DowngradeRequest) IsPending() bool {
	return r.Status == DowngradeStatusPending
}

// DowngradePendingKey builds the uniqueness key for pending requests.
func DowngradePendingKey(ownerUserID, businessID uint) string {
	return fmt.Sprintf("%d:%d", ownerUserID, businessID)
}
