package store

// Schema is applied idempotently on every startup: CREATE TABLE IF NOT
// EXISTS plus a sequence of best-effort ALTER TABLE ADD COLUMN IF NOT
// EXISTS statements rather than a migration-file runner.
const Schema = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;
CREATE EXTENSION IF NOT EXISTS vector;
CREATE EXTENSION IF NOT EXISTS pg_trgm;

CREATE TABLE IF NOT EXISTS schema_migrations (version INT NOT NULL);

CREATE TABLE IF NOT EXISTS entities (
	id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	type             TEXT NOT NULL CHECK (type IN ('person','organization')),
	name             TEXT NOT NULL,
	organization_id  UUID REFERENCES entities(id),
	notes            TEXT NOT NULL DEFAULT '',
	is_owner         BOOLEAN NOT NULL DEFAULT FALSE,
	is_bot           BOOLEAN NOT NULL DEFAULT FALSE,
	creation_source  TEXT NOT NULL DEFAULT 'manual' CHECK (creation_source IN ('manual','extracted','imported')),
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	deleted_at       TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_entities_single_owner ON entities(is_owner) WHERE is_owner = TRUE;
CREATE INDEX IF NOT EXISTS idx_entities_name_trgm ON entities USING gin (name gin_trgm_ops);
CREATE INDEX IF NOT EXISTS idx_entities_active ON entities(type) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS entity_identifiers (
	id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	entity_id        UUID NOT NULL REFERENCES entities(id),
	identifier_type  TEXT NOT NULL,
	identifier_value TEXT NOT NULL,
	metadata         JSONB NOT NULL DEFAULT '{}',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_identifiers_unique ON entity_identifiers(identifier_type, identifier_value);
CREATE INDEX IF NOT EXISTS idx_identifiers_entity ON entity_identifiers(entity_id);

CREATE TABLE IF NOT EXISTS entity_facts (
	id                 UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	entity_id          UUID NOT NULL REFERENCES entities(id),
	fact_type          TEXT NOT NULL,
	category           TEXT NOT NULL DEFAULT '',
	value              TEXT,
	value_date         DATE,
	value_json         JSONB,
	source             TEXT NOT NULL DEFAULT 'manual' CHECK (source IN ('manual','extracted','imported','inferred')),
	confidence         DOUBLE PRECISION NOT NULL DEFAULT 1.0 CHECK (confidence >= 0 AND confidence <= 1),
	source_interaction_id UUID,
	valid_from         TIMESTAMPTZ,
	valid_until        TIMESTAMPTZ,
	status             TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft','active')),
	deleted_at         TIMESTAMPTZ,
	rank               TEXT NOT NULL DEFAULT 'normal' CHECK (rank IN ('preferred','normal','deprecated')),
	superseded_by      UUID REFERENCES entity_facts(id),
	needs_review       BOOLEAN NOT NULL DEFAULT FALSE,
	review_reason      TEXT NOT NULL DEFAULT '',
	confirmation_count INT NOT NULL DEFAULT 0,
	embedding          vector(1536),
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_facts_entity_type ON entity_facts(entity_id, fact_type) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_facts_value_trgm ON entity_facts USING gin (value gin_trgm_ops);
CREATE INDEX IF NOT EXISTS idx_facts_embedding ON entity_facts USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);

CREATE TABLE IF NOT EXISTS entity_relations (
	id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	from_entity_id   UUID NOT NULL REFERENCES entities(id),
	to_entity_id     UUID NOT NULL REFERENCES entities(id),
	relation_type    TEXT NOT NULL,
	valid_from       TIMESTAMPTZ NOT NULL DEFAULT now(),
	valid_until      TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_relations_from ON entity_relations(from_entity_id) WHERE valid_until IS NULL;
CREATE INDEX IF NOT EXISTS idx_relations_to ON entity_relations(to_entity_id) WHERE valid_until IS NULL;

CREATE TABLE IF NOT EXISTS interactions (
	id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	type             TEXT NOT NULL CHECK (type IN ('telegram_session','phone_call','video_meeting')),
	source           TEXT NOT NULL,
	chat_id          TEXT NOT NULL,
	topic_id         TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active','completed','archived')),
	started_at       TIMESTAMPTZ NOT NULL,
	ended_at         TIMESTAMPTZ,
	last_message_at  TIMESTAMPTZ NOT NULL,
	source_metadata  JSONB NOT NULL DEFAULT '{}',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_interactions_key ON interactions(source, chat_id, topic_id, status);
CREATE INDEX IF NOT EXISTS idx_interactions_range ON interactions(source, chat_id, topic_id, started_at, ended_at);

CREATE TABLE IF NOT EXISTS interaction_participants (
	id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	interaction_id   UUID NOT NULL REFERENCES interactions(id),
	entity_id        UUID REFERENCES entities(id),
	role             TEXT NOT NULL DEFAULT 'participant' CHECK (role IN ('initiator','recipient','participant','self')),
	identifier_type  TEXT NOT NULL,
	identifier_value TEXT NOT NULL,
	display_name     TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_participants_unique ON interaction_participants(interaction_id, identifier_type, identifier_value);

CREATE TABLE IF NOT EXISTS messages (
	id                    UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	interaction_id        UUID NOT NULL REFERENCES interactions(id),
	sender_entity_id      UUID REFERENCES entities(id),
	recipient_entity_id   UUID REFERENCES entities(id),
	sender_identifier_type  TEXT NOT NULL DEFAULT '',
	sender_identifier_value TEXT NOT NULL DEFAULT '',
	content               TEXT NOT NULL DEFAULT '',
	is_outgoing           BOOLEAN NOT NULL DEFAULT FALSE,
	timestamp             TIMESTAMPTZ NOT NULL,
	source_message_id     TEXT,
	reply_to_message_id   TEXT,
	media_type            TEXT NOT NULL DEFAULT '',
	media_url             TEXT NOT NULL DEFAULT '',
	chat_type             TEXT NOT NULL DEFAULT '',
	topic_id              TEXT NOT NULL DEFAULT '',
	extraction_status     TEXT NOT NULL DEFAULT 'unprocessed' CHECK (extraction_status IN ('unprocessed','pending','processed','failed')),
	embedding             vector(1536),
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_idempotent ON messages(interaction_id, source_message_id) WHERE source_message_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_messages_interaction_ts ON messages(interaction_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_messages_extraction_status ON messages(extraction_status) WHERE extraction_status IN ('unprocessed','failed');

CREATE TABLE IF NOT EXISTS pending_entity_resolutions (
	id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	identifier_type  TEXT NOT NULL,
	identifier_value TEXT NOT NULL,
	display_name     TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','resolved','merged')),
	resolution       TEXT NOT NULL DEFAULT 'manual',
	resolved_entity_id UUID REFERENCES entities(id),
	suggestions      JSONB NOT NULL DEFAULT '[]',
	sample_message_ids TEXT[] NOT NULL DEFAULT '{}',
	first_seen_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved_at      TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_pending_resolution_key ON pending_entity_resolutions(identifier_type, identifier_value);

CREATE TABLE IF NOT EXISTS unresolved_mentions (
	id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	segment_id   UUID,
	raw_name     TEXT NOT NULL,
	context      TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS topical_segments (
	id                    UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	chat_id               TEXT NOT NULL,
	interaction_id        UUID REFERENCES interactions(id),
	topic                 TEXT NOT NULL DEFAULT '',
	keywords              TEXT[] NOT NULL DEFAULT '{}',
	summary               TEXT NOT NULL DEFAULT '',
	participant_ids       UUID[] NOT NULL DEFAULT '{}',
	primary_participant_id UUID REFERENCES entities(id),
	message_count         INT NOT NULL DEFAULT 0,
	started_at            TIMESTAMPTZ,
	ended_at              TIMESTAMPTZ,
	status                TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active','merged','superseded')),
	confidence            DOUBLE PRECISION NOT NULL DEFAULT 0,
	related_segment_ids   UUID[] NOT NULL DEFAULT '{}',
	extraction_status     TEXT NOT NULL DEFAULT 'unprocessed' CHECK (extraction_status IN ('unprocessed','pending','processed','failed')),
	extraction_attempts   INT NOT NULL DEFAULT 0,
	extraction_error      TEXT NOT NULL DEFAULT '',
	batch_id              UUID,
	embedding             vector(1536),
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_segments_interaction ON topical_segments(interaction_id);
CREATE INDEX IF NOT EXISTS idx_segments_pending_extraction ON topical_segments(extraction_status) WHERE extraction_status IN ('unprocessed','failed');

CREATE TABLE IF NOT EXISTS segment_messages (
	segment_id UUID NOT NULL REFERENCES topical_segments(id),
	message_id UUID NOT NULL REFERENCES messages(id),
	PRIMARY KEY (segment_id, message_id)
);

CREATE TABLE IF NOT EXISTS activities (
	id                 UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name               TEXT NOT NULL,
	activity_type      TEXT NOT NULL CHECK (activity_type IN ('area','business','direction','project','initiative','task','milestone','habit','learning','event_series')),
	status             TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft','idea','active','paused','completed','cancelled','archived')),
	priority           INT NOT NULL DEFAULT 0,
	context            TEXT NOT NULL DEFAULT '',
	parent_id          UUID REFERENCES activities(id),
	depth              INT NOT NULL DEFAULT 0,
	materialized_path  TEXT NOT NULL DEFAULT '',
	owner_entity_id    UUID REFERENCES entities(id),
	client_entity_id   UUID REFERENCES entities(id),
	started_at         TIMESTAMPTZ,
	due_at             TIMESTAMPTZ,
	completed_at       TIMESTAMPTZ,
	tags               TEXT[] NOT NULL DEFAULT '{}',
	embedding          vector(1536),
	deleted_at         TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_activities_parent ON activities(parent_id);
CREATE INDEX IF NOT EXISTS idx_activities_path ON activities USING gin (materialized_path gin_trgm_ops);
CREATE INDEX IF NOT EXISTS idx_activities_name_trgm ON activities USING gin (name gin_trgm_ops);
CREATE INDEX IF NOT EXISTS idx_activities_embedding ON activities USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);

CREATE TABLE IF NOT EXISTS activity_closure (
	ancestor_id   UUID NOT NULL REFERENCES activities(id),
	descendant_id UUID NOT NULL REFERENCES activities(id),
	depth         INT NOT NULL,
	PRIMARY KEY (ancestor_id, descendant_id)
);
CREATE INDEX IF NOT EXISTS idx_closure_descendant ON activity_closure(descendant_id);

CREATE TABLE IF NOT EXISTS commitments (
	id                UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	type              TEXT NOT NULL CHECK (type IN ('promise','request','agreement','deadline','reminder','recurring')),
	title             TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft','pending','in_progress','completed','cancelled','overdue','deferred')),
	from_entity_id    UUID REFERENCES entities(id),
	to_entity_id      UUID REFERENCES entities(id),
	activity_id       UUID REFERENCES activities(id),
	source_message_id UUID REFERENCES messages(id),
	due_date          TIMESTAMPTZ,
	recurrence_rule   TEXT NOT NULL DEFAULT '',
	next_reminder_at  TIMESTAMPTZ,
	reminder_count    INT NOT NULL DEFAULT 0,
	confidence        DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	embedding         vector(1536),
	deleted_at        TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_commitments_reminder_due ON commitments(next_reminder_at) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_commitments_overdue_scan ON commitments(status, due_date) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS pending_approvals (
	id                    UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	item_type             TEXT NOT NULL CHECK (item_type IN ('fact','project','task','commitment')),
	target_id             UUID NOT NULL,
	batch_id              UUID NOT NULL,
	status                TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','approved','rejected')),
	confidence            DOUBLE PRECISION NOT NULL DEFAULT 0,
	source_quote          TEXT NOT NULL DEFAULT '',
	source_interaction_id UUID REFERENCES interactions(id),
	source_entity_id      UUID REFERENCES entities(id),
	context               JSONB NOT NULL DEFAULT '{}',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	reviewed_at           TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_approvals_batch ON pending_approvals(batch_id);
CREATE INDEX IF NOT EXISTS idx_approvals_status ON pending_approvals(status);
CREATE INDEX IF NOT EXISTS idx_approvals_target ON pending_approvals(item_type, target_id);

CREATE TABLE IF NOT EXISTS embedding_jobs (
	id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	target_kind   TEXT NOT NULL CHECK (target_kind IN ('message','fact','activity','commitment','segment','summary')),
	target_id     UUID NOT NULL,
	attempts      INT NOT NULL DEFAULT 0,
	last_error    TEXT NOT NULL DEFAULT '',
	retry_after   TIMESTAMPTZ NOT NULL DEFAULT now(),
	status        TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','completed','failed')),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_embedding_jobs_due ON embedding_jobs(status, retry_after) WHERE status = 'pending';
CREATE INDEX IF NOT EXISTS idx_embedding_jobs_completed ON embedding_jobs(completed_at) WHERE status = 'completed';
CREATE INDEX IF NOT EXISTS idx_embedding_jobs_failed ON embedding_jobs(created_at) WHERE status = 'failed';

CREATE TABLE IF NOT EXISTS data_quality_reports (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	metrics     JSONB NOT NULL DEFAULT '{}',
	issues      JSONB NOT NULL DEFAULT '[]',
	resolutions JSONB NOT NULL DEFAULT '[]',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS refresh_tokens (
	jti          UUID PRIMARY KEY,
	user_id      UUID NOT NULL REFERENCES entities(id),
	token_hash   TEXT NOT NULL,
	revoked      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens(user_id) WHERE revoked = FALSE;
`

// migrations holds best-effort, additive statements applied after Schema on
// every Open(), evolving an already-deployed database without a
// migration-file runner.
var migrations = []string{
	`ALTER TABLE entities ADD COLUMN IF NOT EXISTS is_bot BOOLEAN NOT NULL DEFAULT FALSE`,
	`ALTER TABLE pending_approvals ADD COLUMN IF NOT EXISTS context JSONB NOT NULL DEFAULT '{}'`,
	`ALTER TABLE entities ADD COLUMN IF NOT EXISTS password_hash TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE entities ADD COLUMN IF NOT EXISTS api_key_hash TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE entities ADD COLUMN IF NOT EXISTS failed_login_count INT NOT NULL DEFAULT 0`,
	`ALTER TABLE entities ADD COLUMN IF NOT EXISTS locked_until TIMESTAMPTZ`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_entities_api_key_hash ON entities(api_key_hash) WHERE api_key_hash != ''`,
	`ALTER TABLE interactions ADD COLUMN IF NOT EXISTS segmented_at TIMESTAMPTZ`,
	`CREATE INDEX IF NOT EXISTS idx_interactions_unsegmented ON interactions(ended_at) WHERE status='completed' AND segmented_at IS NULL`,
	`ALTER TABLE entity_facts ALTER COLUMN entity_id DROP NOT NULL`,
	`ALTER TABLE entity_facts ADD COLUMN IF NOT EXISTS display_name TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE activities ADD COLUMN IF NOT EXISTS owner_display_name TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE activities ADD COLUMN IF NOT EXISTS client_display_name TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE commitments ADD COLUMN IF NOT EXISTS from_display_name TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE commitments ADD COLUMN IF NOT EXISTS to_display_name TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE activities ADD COLUMN IF NOT EXISTS confirmation_count INT NOT NULL DEFAULT 0`,
	`ALTER TABLE commitments ADD COLUMN IF NOT EXISTS confirmation_count INT NOT NULL DEFAULT 0`,
	`CREATE TABLE IF NOT EXISTS segment_activities (
		segment_id  UUID NOT NULL REFERENCES topical_segments(id),
		activity_id UUID NOT NULL REFERENCES activities(id),
		PRIMARY KEY (segment_id, activity_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_segment_activities_activity ON segment_activities(activity_id)`,
}
