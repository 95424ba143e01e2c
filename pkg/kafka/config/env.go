package config

const (
	EnvKafkaBrokers       = "KAFKA_BROKERS"
	EnvKafkaClientID      = "KAFKA_CLIENT_ID"
	EnvKafkaGroupID       = "KAFKA_GROUP_ID"
	EnvKafkaTopic         = "KAFKA_TOPIC"
	EnvKafkaDLQTopic      = "KAFKA_DLQ_TOPIC"
	EnvKafkaMaxRetries    = "KAFKA_MAX_RETRIES"
	EnvKafkaBatchSize     = "KAFKA_BATCH_SIZE"
	EnvKafkaBatchTimeout  = "KAFKA_BATCH_TIMEOUT"
	EnvKafkaRequiredAcks  = "KAFKA_REQUIRED_ACKS"
	EnvKafkaCompression   = "KAFKA_COMPRESSION"
	EnvKafkaReadMinBytes  = "KAFKA_READ_MIN_BYTES"
	EnvKafkaReadMaxBytes  = "KAFKA_READ_MAX_BYTES"
	EnvKafkaReadMaxWait   = "KAFKA_READ_MAX_WAIT"
)
