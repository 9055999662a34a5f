package config

import "time"

// Database and Performance Constants
const (
	// Timeouts
	DefaultQueryTimeout = 30 * time.Second
	SnapshotTimeout     = 20 * time.Second
	BatchQueryTimeout   = 30 * time.Second
	NetworkDialTimeout  = 5 * time.Second
	PublishTimeout      = 5 * time.Second
	AnnounceTimeout     = 10 * time.Second
	ShutdownTimeout     = 15 * time.Second
	StartupTimeout      = 2 * time.Minute

	// Retries
	MaxRetries    = 3
	RetryInterval = time.Second
)

// API Constants
const (
	CallerHeader       = "X-Caller-ID"
	RequestTimeout     = 10 * time.Second
	RateLimiterCleanup = time.Minute
	MaxBatchSize       = 3000
)

// Announcement colors
const (
	SaleColor  = 0x2B2D31
	ChainColor = 0xFFD700
)
