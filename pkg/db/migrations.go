package db

const migrationsSQL = `
CREATE TABLE IF NOT EXISTS sources (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	source_name TEXT NOT NULL,
	source_type TEXT NOT NULL DEFAULT 'other',
	file_size INTEGER NOT NULL DEFAULT 0,
	total_words INTEGER NOT NULL DEFAULT 0,
	new_words INTEGER NOT NULL DEFAULT 0,
	duplicate_words INTEGER NOT NULL DEFAULT 0,
	title TEXT,
	description TEXT,
	level TEXT,
	skill TEXT,
	task TEXT NOT NULL DEFAULT 'Vocabulary',
	card_qty INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (user_id, source_name)
);

CREATE INDEX IF NOT EXISTS idx_sources_user_created ON sources (user_id, created_at);

CREATE TABLE IF NOT EXISTS words (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	english_word TEXT NOT NULL COLLATE NOCASE,
	word_type TEXT,
	translation TEXT,
	category1 TEXT,
	category2 TEXT,
	category3 TEXT,
	level TEXT,
	example_en TEXT,
	example_translated TEXT,
	image_url TEXT,
	known INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (user_id, english_word)
);

CREATE INDEX IF NOT EXISTS idx_words_user_level ON words (user_id, level);

CREATE TABLE IF NOT EXISTS source_words (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
	word_id INTEGER NOT NULL REFERENCES words(id) ON DELETE CASCADE,
	is_new INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (source_id, word_id)
);

CREATE INDEX IF NOT EXISTS idx_source_words_word ON source_words (word_id)
`
