package model

// UsageCounter tracks one user's message count for one calendar month.
// Month is formatted "2006-01".
type UsageCounter struct {
	UserID       int64
	Month        string
	MessagesSent int
}
