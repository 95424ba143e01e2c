package config

import "time"

const (
	DefaultBrokers      = "localhost:9092"
	DefaultMaxRetries   = 3
	DefaultBatchSize    = 100
	DefaultBatchTimeout = 10 * time.Millisecond
	DefaultRequiredAcks = "all"
	DefaultCompression  = "snappy"
	DefaultReadMinBytes = 1
	DefaultReadMaxBytes = 10 << 20
	DefaultReadMaxWait  = 500 * time.Millisecond
)
