package config

import (
	"github.com/kelseyhightower/envconfig"
)

// Load populates a Config entirely from environment variables, processing
// each group separately so a missing optional group doesn't block the
// required ones (DATABASE_URL, OPENAI_API_KEY, JWT_SECRET).
func Load() (*Config, error) {
	cfg := &Config{}

	groups := []any{
		&cfg.HTTP,
		&cfg.DB,
		&cfg.Redis,
		&cfg.Kafka,
		&cfg.Provider,
		&cfg.Session,
		&cfg.Segmenter,
		&cfg.Resolution,
		&cfg.Dedup,
		&cfg.Approval,
		&cfg.Disambiguate,
		&cfg.Embedding,
		&cfg.Commitment,
		&cfg.Audit,
		&cfg.Auth,
		&cfg.Observability,
	}
	for _, g := range groups {
		if err := envconfig.Process("", g); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadSlackBridge populates the Slack adapter's own config plus the two
// shared groups it needs (Kafka, Observability) without pulling in the
// full Config (DB/Auth/etc. the bridge process never touches).
func LoadSlackBridge() (*SlackBridgeConfig, *KafkaConfig, *ObservabilityConfig, error) {
	bridge := &SlackBridgeConfig{}
	kafka := &KafkaConfig{}
	obs := &ObservabilityConfig{}
	for _, g := range []any{bridge, kafka, obs} {
		if err := envconfig.Process("", g); err != nil {
			return nil, nil, nil, err
		}
	}
	return bridge, kafka, obs, nil
}
