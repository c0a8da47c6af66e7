package models

import "time"

// Plan is the subscription tier of a user.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
)

const gib = int64(1024 * 1024 * 1024)

// ParsePlan parses a plan name. Unknown names report false.
func ParsePlan(s string) (Plan, bool) {
	switch Plan(s) {
	case PlanFree, PlanPro, PlanBusiness:
		return Plan(s), true
	}
	return PlanFree, false
}

// StorageGB returns the storage allowance of the plan in gigabytes.
func (p Plan) StorageGB() int64 {
	switch p {
	case PlanBusiness:
		return 2000
	case PlanPro:
		return 200
	default:
		return 15
	}
}

// StorageBytes returns the storage allowance of the plan in bytes.
func (p Plan) StorageBytes() int64 {
	return p.StorageGB() * gib
}

// User is the authenticated account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	StorageUsed  int64     `json:"storageUsed"`
	StorageLimit int64     `json:"storageLimit"`
	FileCount    int       `json:"fileCount,omitempty"`
	FolderCount  int       `json:"folderCount,omitempty"`
	Plan         Plan      `json:"plan,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// StorageInfo is the used/total pair shown next to the file list.
type StorageInfo struct {
	Used  int64 `json:"used"`
	Total int64 `json:"total"`
}

// StorageFor derives storage info strictly from the plan: the total is the
// plan allowance and used is clamped into [0, total].
func StorageFor(plan Plan, used int64) StorageInfo {
	total := plan.StorageBytes()
	if used < 0 {
		used = 0
	}
	if used > total {
		used = total
	}
	return StorageInfo{Used: used, Total: total}
}

// Share is a share link created by the current user.
type Share struct {
	ID         string     `json:"id"`
	Type       Kind       `json:"type"`
	ResourceID string     `json:"resourceId"`
	Token      string     `json:"token,omitempty"`
	URL        string     `json:"url,omitempty"`
	Permission string     `json:"permission"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}
