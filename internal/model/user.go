package model

import "time"

// Plan tiers. Billing itself lives in an external service; the backend only
// reads the tier to gate usage.
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

type User struct {
	ID        int64
	Email     string
	Name      string
	Plan      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
