// Package postgres implements the PostgreSQL persistence layer for the
// loyalty hub.
package postgres

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_purchases",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_reward_catalog",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_unlocks",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE PURCHASES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create purchases table
-- Version: 001

-- Purchases are append-only. All amounts are integer minor units (kobo)
-- so aggregation never accumulates floating point drift.
CREATE TABLE IF NOT EXISTS purchases (
    id UUID PRIMARY KEY,
    user_id BIGINT NOT NULL,
    amount_minor BIGINT NOT NULL,
    currency CHAR(3) NOT NULL DEFAULT 'NGN',
    metadata JSONB,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT positive_amount CHECK (amount_minor > 0),
    CONSTRAINT valid_user CHECK (user_id > 0)
);

-- Index for per-user counter aggregation
CREATE INDEX IF NOT EXISTS idx_purchases_user_id ON purchases(user_id);
CREATE INDEX IF NOT EXISTS idx_purchases_created_at ON purchases(created_at DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS purchases;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE REWARD CATALOG
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create achievement and badge catalogs
-- Version: 002

CREATE TABLE IF NOT EXISTS achievements (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(100) NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    rule_type VARCHAR(30) NOT NULL,
    required_count INTEGER NOT NULL DEFAULT 0,
    required_spend_minor BIGINT NOT NULL DEFAULT 0,
    points INTEGER NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    sort_order INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT non_negative_points CHECK (points >= 0),
    CONSTRAINT non_negative_count CHECK (required_count >= 0),
    CONSTRAINT non_negative_spend CHECK (required_spend_minor >= 0)
);

CREATE INDEX IF NOT EXISTS idx_achievements_active ON achievements(sort_order, id) WHERE active;

CREATE TABLE IF NOT EXISTS badges (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(100) NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    required_points INTEGER NOT NULL,
    cashback_minor BIGINT NOT NULL DEFAULT 0,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    sort_order INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT non_negative_threshold CHECK (required_points >= 0),
    CONSTRAINT non_negative_cashback CHECK (cashback_minor >= 0)
);

CREATE INDEX IF NOT EXISTS idx_badges_active ON badges(sort_order, id) WHERE active;
`

const migration002Down = `
DROP TABLE IF EXISTS badges;
DROP TABLE IF EXISTS achievements;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE UNLOCKS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create unlock tables
-- Version: 003

-- The composite primary keys are the correctness anchor of the whole
-- cascade: a second insert of the same (user, achievement) or
-- (user, badge) pair is impossible, whatever the callers do.
CREATE TABLE IF NOT EXISTS user_achievements (
    user_id BIGINT NOT NULL,
    achievement_id BIGINT NOT NULL REFERENCES achievements(id) ON DELETE CASCADE,
    unlocked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, achievement_id)
);

CREATE INDEX IF NOT EXISTS idx_user_achievements_user ON user_achievements(user_id);

-- cashback_awarded_minor = 0 means "unlocked but not paid".
-- The payout marking is a conditional UPDATE against that zero.
CREATE TABLE IF NOT EXISTS user_badges (
    user_id BIGINT NOT NULL,
    badge_id BIGINT NOT NULL REFERENCES badges(id) ON DELETE CASCADE,
    cashback_awarded_minor BIGINT NOT NULL DEFAULT 0,
    transaction_ref VARCHAR(100) NOT NULL DEFAULT '',
    unlocked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    awarded_at TIMESTAMP WITH TIME ZONE,

    PRIMARY KEY (user_id, badge_id),
    CONSTRAINT non_negative_awarded CHECK (cashback_awarded_minor >= 0)
);

CREATE INDEX IF NOT EXISTS idx_user_badges_user ON user_badges(user_id);
CREATE INDEX IF NOT EXISTS idx_user_badges_pending ON user_badges(user_id, badge_id) WHERE cashback_awarded_minor = 0;
`

const migration003Down = `
DROP TABLE IF EXISTS user_badges;
DROP TABLE IF EXISTS user_achievements;
`
