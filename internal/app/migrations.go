package app

import "serotonyl.ru/invest-bot/internal/db/postgres"

// migrations содержит схему базы. Встроены в код для упрощения деплоя.
// Новые версии только дописываются в конец.
var migrations = []postgres.Migration{
	{Version: 1, Name: "accounts", SQL: migration001Accounts},
	{Version: 2, Name: "investments", SQL: migration002Investments},
	{Version: 3, Name: "transactions", SQL: migration003Transactions},
	{Version: 4, Name: "admin", SQL: migration004Admin},
}

const migration001Accounts = `
CREATE TABLE IF NOT EXISTS accounts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL,
    username VARCHAR(255) NOT NULL DEFAULT '',
    first_name VARCHAR(255) NOT NULL DEFAULT '',
    language VARCHAR(8) NOT NULL DEFAULT 'en',
    main_balance NUMERIC(20,8) NOT NULL DEFAULT 0 CHECK (main_balance >= 0),
    bonus_balance NUMERIC(20,8) NOT NULL DEFAULT 0 CHECK (bonus_balance >= 0),
    wallet_address VARCHAR(128),
    wallet_network VARCHAR(16),
    state VARCHAR(64) NOT NULL DEFAULT 'none',
    state_context JSONB NOT NULL DEFAULT '{}',
    referrer_user_id BIGINT REFERENCES accounts(user_id),
    referral_earnings NUMERIC(20,8) NOT NULL DEFAULT 0,
    total_invested NUMERIC(20,8) NOT NULL DEFAULT 0,
    total_withdrawn NUMERIC(20,8) NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_accounts_referrer ON accounts(referrer_user_id);
`

const migration002Investments = `
CREATE TABLE IF NOT EXISTS investments (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES accounts(user_id),
    plan_id VARCHAR(32) NOT NULL,
    amount NUMERIC(20,8) NOT NULL CHECK (amount > 0),
    profit NUMERIC(20,8) NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'running',
    started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    matures_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_investments_user_running
    ON investments(user_id, matures_at) WHERE status = 'running';
`

const migration003Transactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES accounts(user_id),
    type VARCHAR(32) NOT NULL,
    amount NUMERIC(20,8) NOT NULL CHECK (amount > 0),
    status VARCHAR(16) NOT NULL,
    external_ref VARCHAR(128) UNIQUE,
    from_user_id BIGINT,
    level INTEGER,
    wallet_address VARCHAR(128),
    wallet_network VARCHAR(16),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transactions_user_created ON transactions(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_pending ON transactions(type) WHERE status = 'pending';
`

const migration004Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    session_token VARCHAR(255) UNIQUE,
    authenticated_at TIMESTAMPTZ DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL,
    last_activity TIMESTAMPTZ DEFAULT NOW(),
    is_active BOOLEAN DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_user_id ON admin_sessions(user_id);
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    attempt_time TIMESTAMPTZ DEFAULT NOW(),
    success BOOLEAN DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_admin_login_attempts_user ON admin_login_attempts(user_id, attempt_time);
`
