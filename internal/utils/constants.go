package utils

import "time"

// =============================================================================
// Timeout Constants
// =============================================================================

const (
	// DefaultRequestTimeout bounds a single API request, upstream fetches included
	DefaultRequestTimeout = 60 * time.Second

	// PublishTimeout bounds publishing one report event
	PublishTimeout = 10 * time.Second

	// ConnectTimeout bounds the initial connection to a cache or broker
	ConnectTimeout = 5 * time.Second

	// ShutdownTimeout bounds graceful HTTP shutdown
	ShutdownTimeout = 10 * time.Second
)

// =============================================================================
// Retry and Backoff Constants
// =============================================================================

const (
	// DefaultMaxRetries is the default number of attempts for upstream calls
	DefaultMaxRetries = 3

	// DefaultRetryBackoff is the default backoff duration between retries
	DefaultRetryBackoff = 200 * time.Millisecond

	// MaxRetryBackoff is the maximum backoff duration
	MaxRetryBackoff = 5 * time.Second
)

// =============================================================================
// Queue Type Constants
// =============================================================================

// QueueType represents the type of message queue
type QueueType string

const (
	// QueueTypeNone disables report publishing
	QueueTypeNone QueueType = "none"

	// QueueTypeNATS represents NATS JetStream queue
	QueueTypeNATS QueueType = "nats"

	// QueueTypeRedis represents Redis Streams queue
	QueueTypeRedis QueueType = "redis"

	// QueueTypeKafka represents Apache Kafka queue
	QueueTypeKafka QueueType = "kafka"

	// QueueTypeMemory represents in-memory queue (for testing)
	QueueTypeMemory QueueType = "memory"
)

// =============================================================================
// Cache Type Constants
// =============================================================================

// CacheType represents the backend of the upstream payload cache
type CacheType string

const (
	// CacheTypeNone disables caching
	CacheTypeNone CacheType = "none"

	// CacheTypeMemory keeps payloads in process memory (default)
	CacheTypeMemory CacheType = "memory"

	// CacheTypeRedis shares payloads through Redis
	CacheTypeRedis CacheType = "redis"

	// CacheTypeSQLite persists payloads in a local SQLite file
	CacheTypeSQLite CacheType = "sqlite"
)

// =============================================================================
// Archive Type Constants
// =============================================================================

// ArchiveType represents where rendered charts are archived
type ArchiveType string

const (
	// ArchiveTypeNone disables archiving (default)
	ArchiveTypeNone ArchiveType = "none"

	// ArchiveTypeS3 writes charts to an S3-compatible bucket
	ArchiveTypeS3 ArchiveType = "s3"
)
