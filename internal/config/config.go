// Package config provides configuration types and loading for pkgraph.
package config

import "time"

// Config is the root configuration struct. Top-level groups mirror the
// subsystems named in the external-interfaces environment-variable table:
// DB, Redis, Kafka, Session, Resolution, Dedup, Approval, Embedding, Auth.
type Config struct {
	HTTP          HTTPConfig          `json:"http"`
	DB            DBConfig            `json:"db"`
	Redis         RedisConfig         `json:"redis"`
	Kafka         KafkaConfig         `json:"kafka"`
	Provider      ProviderConfig      `json:"provider"`
	Session       SessionConfig       `json:"session"`
	Segmenter     SegmenterConfig     `json:"segmenter"`
	Resolution    ResolutionConfig    `json:"resolution"`
	Dedup         DedupConfig         `json:"dedup"`
	Approval      ApprovalConfig      `json:"approval"`
	Disambiguate  DisambiguateConfig  `json:"disambiguate"`
	Embedding     EmbeddingConfig     `json:"embedding"`
	Commitment    CommitmentConfig    `json:"commitment"`
	Audit         AuditConfig         `json:"audit"`
	Auth          AuthConfig          `json:"auth"`
	Observability ObservabilityConfig `json:"observability"`
}

// HTTPConfig groups the RPC/REST surface's networking settings.
type HTTPConfig struct {
	Host            string        `json:"host" envconfig:"HOST" default:"0.0.0.0"`
	Port            int           `json:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `json:"readTimeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `json:"writeTimeout" envconfig:"WRITE_TIMEOUT" default:"30s"`
	RateLimitPerMin int           `json:"rateLimitPerMin" envconfig:"RATE_LIMIT_PER_MIN" default:"120"`
}

// DBConfig configures the Postgres connection pool.
type DBConfig struct {
	URL          string `json:"url" envconfig:"DATABASE_URL" required:"true"`
	MaxConns     int32  `json:"maxConns" envconfig:"DB_MAX_CONNS" default:"10"`
	MigrateOnRun bool   `json:"migrateOnRun" envconfig:"DB_MIGRATE_ON_RUN" default:"true"`
}

// RedisConfig configures the cache backing the disambiguation service's
// daily "has recent interaction" lookups.
type RedisConfig struct {
	URL                    string `json:"url" envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	DailyContextTTLSeconds int    `json:"dailyContextTTLSeconds" envconfig:"REDIS_DAILY_CONTEXT_TTL" default:"86400"`
}

// KafkaConfig configures the durable job-queue substrate.
type KafkaConfig struct {
	Brokers           string `json:"brokers" envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	EmbeddingTopic    string `json:"embeddingTopic" envconfig:"KAFKA_EMBEDDING_TOPIC" default:"pkgraph.embedding.jobs"`
	NotificationTopic string `json:"notificationTopic" envconfig:"KAFKA_NOTIFICATION_TOPIC" default:"pkgraph.notifications.out"`
	ConsumerGroup     string `json:"consumerGroup" envconfig:"KAFKA_CONSUMER_GROUP" default:"pkgraph"`
}

// ProviderConfig configures the LLM/embedding client.
type ProviderConfig struct {
	APIKey         string `json:"apiKey" envconfig:"OPENAI_API_KEY" required:"true"`
	APIBase        string `json:"apiBase,omitempty" envconfig:"OPENAI_API_BASE"`
	ChatModel      string `json:"chatModel" envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	EmbeddingModel string `json:"embeddingModel" envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
}

// SessionConfig configures the session assembler's gap-based cutover.
type SessionConfig struct {
	GapHours int `json:"gapHours" envconfig:"SESSION_GAP_HOURS" default:"4"`
}

// SegmenterConfig configures the topical segmenter.
type SegmenterConfig struct {
	WindowSize          int     `json:"windowSize" envconfig:"SEGMENTER_WINDOW_SIZE" default:"5"`
	CosineDropThreshold float64 `json:"cosineDropThreshold" envconfig:"SEGMENTER_COSINE_DROP_THRESHOLD" default:"0.35"`
}

// ResolutionConfig configures the identifier resolver.
type ResolutionConfig struct {
	PendingTTL            time.Duration `json:"pendingTTL" envconfig:"RESOLUTION_PENDING_TTL" default:"720h"`
	AutoResolveConfidence float64       `json:"autoResolveConfidence" envconfig:"AUTO_RESOLVE_CONFIDENCE_THRESHOLD" default:"0.9"`
}

// DedupConfig configures the semantic deduper's two-tier thresholds.
type DedupConfig struct {
	AutoMergeThreshold  float64 `json:"autoMergeThreshold" envconfig:"SEMANTIC_SIMILARITY_THRESHOLD" default:"0.85"`
	ReviewThreshold     float64 `json:"reviewThreshold" envconfig:"DEDUP_REVIEW_THRESHOLD" default:"0.60"`
	NameEditMaxDistance int     `json:"nameEditMaxDistance" envconfig:"DEDUP_NAME_EDIT_MAX_DISTANCE" default:"2"`
}

// ApprovalConfig configures the pending-approval workflow's retention.
// RetentionDays is the age past which the approval GC hard-deletes
// rejected approvals (with their targets) and orphaned drafts; 0 removes
// them at the next GC run. Reject does not read it: the reject endpoints
// and CLI take their own retention value (default
// approval.DefaultRetentionDays).
type ApprovalConfig struct {
	RetentionDays    int           `json:"retentionDays" envconfig:"PENDING_APPROVAL_RETENTION_DAYS" default:"30"`
	GCInterval       time.Duration `json:"gcInterval" envconfig:"APPROVAL_GC_INTERVAL" default:"1h"`
	AutoPromoteCount int           `json:"autoPromoteConfirmations" envconfig:"AUTO_PROMOTE_CONFIRMATIONS" default:"3"`
}

// DisambiguateConfig configures the disambiguation scorer's weights.
type DisambiguateConfig struct {
	MinMargin float64 `json:"minMargin" envconfig:"DISAMBIGUATE_MIN_MARGIN" default:"0.15"`
}

// EmbeddingConfig configures the embedding worker's queue and retry policy.
// Dim is fixed at 1536 by the pgvector schema; the option exists so a
// mismatched model choice fails loudly at startup instead of at insert.
type EmbeddingConfig struct {
	Dim           int           `json:"dim" envconfig:"EMBEDDING_DIM" default:"1536"`
	MaxRetries    int           `json:"maxRetries" envconfig:"EMBEDDING_MAX_RETRIES" default:"5"`
	RetryBackoff  time.Duration `json:"retryBackoff" envconfig:"EMBEDDING_RETRY_BACKOFF" default:"30s"`
	MaxFailedJobs int           `json:"maxFailedJobs" envconfig:"EMBEDDING_MAX_FAILED_JOBS" default:"5000"`
	PollInterval  time.Duration `json:"pollInterval" envconfig:"EMBEDDING_POLL_INTERVAL" default:"5s"`
	Concurrency   int           `json:"concurrency" envconfig:"EMBEDDING_CONCURRENCY" default:"4"`
}

// CommitmentConfig configures the commitment/reminder scheduler.
type CommitmentConfig struct {
	TickInterval time.Duration `json:"tickInterval" envconfig:"COMMITMENT_TICK_INTERVAL" default:"1m"`
	MaxConc      int           `json:"maxConc" envconfig:"COMMITMENT_MAX_CONC" default:"5"`
	LockPath     string        `json:"lockPath" envconfig:"COMMITMENT_LOCK_PATH" default:"/tmp/pkgraph-commitment.lock"`
}

// AuditConfig configures the data-quality auditor's sweep cadence.
type AuditConfig struct {
	Interval time.Duration `json:"interval" envconfig:"AUDIT_INTERVAL" default:"6h"`
}

// AuthConfig configures JWT issuance, password hashing, and the
// failed-login lockout window.
type AuthConfig struct {
	JWTSecret        string        `json:"jwtSecret" envconfig:"JWT_SECRET" required:"true"`
	AccessTokenTTL   time.Duration `json:"accessTokenTTL" envconfig:"ACCESS_TOKEN_TTL" default:"15m"`
	RefreshTokenTTL  time.Duration `json:"refreshTokenTTL" envconfig:"REFRESH_TOKEN_TTL" default:"720h"`
	BcryptCost       int           `json:"bcryptCost" envconfig:"BCRYPT_COST" default:"12"`
	MaxLoginAttempts int           `json:"maxLoginAttempts" envconfig:"MAX_LOGIN_ATTEMPTS" default:"5"`
	LockoutMinutes   int           `json:"lockoutMinutes" envconfig:"LOCKOUT_DURATION_MINUTES" default:"15"`
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	LogFormat string `json:"logFormat" envconfig:"LOG_FORMAT" default:"json"` // "json" or "text"
	LogLevel  string `json:"logLevel" envconfig:"LOG_LEVEL" default:"info"`
}

// SlackBridgeConfig configures the standalone Slack source adapter: its own
// Slack app credentials, the pkgraphd ingest endpoint it forwards messages
// to, and the channel it posts commitment reminders into. Kept separate
// from Config since the bridge is its own process with its own credentials
// rather than a component wired into pkgraphd.
type SlackBridgeConfig struct {
	SlackBotToken   string `json:"slackBotToken" envconfig:"SLACK_BOT_TOKEN" required:"true"`
	SlackAppToken   string `json:"slackAppToken" envconfig:"SLACK_APP_TOKEN" required:"true"`
	SlackAPIBase    string `json:"slackApiBase,omitempty" envconfig:"SLACK_API_BASE"`
	ReminderChannel string `json:"reminderChannel" envconfig:"SLACK_REMINDER_CHANNEL"`
	PKGraphBaseURL  string `json:"pkgraphBaseUrl" envconfig:"PKGRAPH_BASE_URL" default:"http://localhost:8080"`
	PKGraphAPIKey   string `json:"pkgraphApiKey" envconfig:"PKGRAPH_API_KEY" required:"true"`
}
