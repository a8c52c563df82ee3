package domain

import "time"

// IPWhitelistEntry mirrors the persisted representation in the
// ip_whitelist_entries table. Address holds a dotted-quad IPv4 address or a
// CIDR range. A tenant with zero active entries is unrestricted.
type IPWhitelistEntry struct {
	ID          string
	TenantID    string
	Address     string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IPWhitelistEntryPatch describes a partial update to an entry. Description
// distinguishes "clear" (pointer to empty string) from "leave untouched" (nil).
type IPWhitelistEntryPatch struct {
	Address     *string
	Description *string
	IsActive    *bool
}

// IsEmpty reports whether the patch carries no changes.
func (p IPWhitelistEntryPatch) IsEmpty() bool {
	return p.Address == nil && p.Description == nil && p.IsActive == nil
}
