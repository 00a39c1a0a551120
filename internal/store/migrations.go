package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
	id              TEXT PRIMARY KEY,
	user_id         INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'TODO',
	priority        TEXT NOT NULL DEFAULT '',
	due_date        DATETIME,
	completed_at    DATETIME,
	estimated_hours INTEGER,
	actual_hours    INTEGER,
	tags            TEXT NOT NULL DEFAULT '[]',
	parent_id       TEXT REFERENCES tasks(id) ON DELETE CASCADE,
	ai_suggested_priority INTEGER NOT NULL DEFAULT 0,
	ai_analysis     TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_user_status ON tasks(user_id, status);
CREATE INDEX IF NOT EXISTS idx_tasks_parent_id ON tasks(parent_id);
CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS notification_preferences (
	user_id                 INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	destination             TEXT,
	enabled                 INTEGER NOT NULL DEFAULT 0,
	daily_reminder_time     TEXT,
	timezone                TEXT NOT NULL DEFAULT 'America/Sao_Paulo',
	send_overdue_alerts     INTEGER NOT NULL DEFAULT 1,
	send_completion_summary INTEGER NOT NULL DEFAULT 1,
	created_at              DATETIME NOT NULL,
	updated_at              DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_prefs_reminder ON notification_preferences(enabled, daily_reminder_time);

CREATE TABLE IF NOT EXISTS user_settings (
	user_id                   INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	encrypted_ai_key          TEXT NOT NULL DEFAULT '',
	encrypted_messaging_sid   TEXT NOT NULL DEFAULT '',
	encrypted_messaging_token TEXT NOT NULL DEFAULT '',
	sender_number             TEXT NOT NULL DEFAULT '',
	destination_number        TEXT NOT NULL DEFAULT '',
	created_at                DATETIME NOT NULL,
	updated_at                DATETIME NOT NULL
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
