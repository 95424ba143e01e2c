package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "trimly"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	// Bounded budget for optimistic-transaction retries. The recommended
	// band is 3-5: fewer attempts refuse too eagerly under load, more just
	// stretches tail latency.
	DefaultTxMaxAttempts = 4

	DefaultMediaBaseURL       = "http://localhost:9100"
	DefaultMediaUploadTimeout = 30 * time.Second

	DefaultNearbyMaxRadiusKm = 25.0

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100
)
