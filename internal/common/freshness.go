package common

import "time"

// Freshness TTLs for cached upstream state
const (
	FreshnessCrumb = 1 * time.Hour
)
