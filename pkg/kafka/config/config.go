// Package config holds broker connection settings shared by producers and
// consumers. Values come from the environment with sensible local defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Brokers      []string
	ClientID     string
	GroupID      string
	Topic        string
	DLQTopic     string
	MaxRetries   int
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks string
	Compression  string
	ReadMinBytes int
	ReadMaxBytes int
	ReadMaxWait  time.Duration
}

func Load(clientID string) *Config {
	return &Config{
		Brokers:      strings.Split(getEnvStr(EnvKafkaBrokers, DefaultBrokers), ","),
		ClientID:     getEnvStr(EnvKafkaClientID, clientID),
		GroupID:      os.Getenv(EnvKafkaGroupID),
		Topic:        os.Getenv(EnvKafkaTopic),
		DLQTopic:     os.Getenv(EnvKafkaDLQTopic),
		MaxRetries:   getEnvInt(EnvKafkaMaxRetries, DefaultMaxRetries),
		BatchSize:    getEnvInt(EnvKafkaBatchSize, DefaultBatchSize),
		BatchTimeout: getEnvDuration(EnvKafkaBatchTimeout, DefaultBatchTimeout),
		RequiredAcks: getEnvStr(EnvKafkaRequiredAcks, DefaultRequiredAcks),
		Compression:  getEnvStr(EnvKafkaCompression, DefaultCompression),
		ReadMinBytes: getEnvInt(EnvKafkaReadMinBytes, DefaultReadMinBytes),
		ReadMaxBytes: getEnvInt(EnvKafkaReadMaxBytes, DefaultReadMaxBytes),
		ReadMaxWait:  getEnvDuration(EnvKafkaReadMaxWait, DefaultReadMaxWait),
	}
}

func (c *Config) Validate() error {
	var errs []string
	if len(c.Brokers) == 0 || c.Brokers[0] == "" {
		errs = append(errs, "at least one broker is required")
	}
	if c.Topic == "" {
		errs = append(errs, "topic is required")
	}
	if c.MaxRetries < 0 {
		errs = append(errs, "max retries cannot be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid kafka configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

func getEnvStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
