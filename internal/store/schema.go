package store

// schema mirrors the tables of the budgeting application that owns the
// database. Every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	name TEXT,
	currency TEXT,
	type TEXT DEFAULT 'checking',
	balance TEXT,
	balance_date INTEGER
);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	account_id TEXT,
	posted INTEGER,
	amount TEXT,
	description TEXT,
	payee TEXT,
	transacted_at INTEGER,
	pending INTEGER DEFAULT 0,
	hidden INTEGER DEFAULT 0,
	category TEXT DEFAULT 'Uncategorized',
	FOREIGN KEY (account_id) REFERENCES accounts(id)
);

CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category);
CREATE INDEX IF NOT EXISTS idx_transactions_posted ON transactions(posted);

CREATE TABLE IF NOT EXISTS user_config (
	id INTEGER PRIMARY KEY,
	display_name TEXT,
	classifier_training_date TEXT,
	auto_categorize INTEGER DEFAULT 0
);
`
