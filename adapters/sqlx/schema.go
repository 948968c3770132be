package sqlx

type dialect struct {
	driver Driver
	schema []string
	upsert string
}

var dialects = map[Driver]dialect{
	DriverPostgres: {
		driver: DriverPostgres,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS user_scores (
	game_id VARCHAR(50) NOT NULL,
	user_id VARCHAR(50) NOT NULL,
	score DOUBLE PRECISION NOT NULL,
	name VARCHAR(50) NULL,
	params VARCHAR(255) NULL,
	PRIMARY KEY (game_id, user_id)
)`,
			`CREATE INDEX IF NOT EXISTS idx_user_scores_game_score ON user_scores (game_id, score DESC)`,
		},
		upsert: `INSERT INTO user_scores (game_id, user_id, score, name, params) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (game_id, user_id) DO UPDATE SET score = EXCLUDED.score, name = EXCLUDED.name, params = EXCLUDED.params`,
	},
	DriverSQLite: {
		driver: DriverSQLite,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS user_scores (
	game_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	score REAL NOT NULL,
	name TEXT NULL,
	params TEXT NULL,
	PRIMARY KEY (game_id, user_id)
)`,
			`CREATE INDEX IF NOT EXISTS idx_user_scores_game_score ON user_scores (game_id, score DESC)`,
		},
		upsert: `INSERT INTO user_scores (game_id, user_id, score, name, params) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (game_id, user_id) DO UPDATE SET score = excluded.score, name = excluded.name, params = excluded.params`,
	},
	// MySQL has no CREATE INDEX IF NOT EXISTS, so the index is declared inline.
	DriverMySQL: {
		driver: DriverMySQL,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS user_scores (
	game_id VARCHAR(50) NOT NULL,
	user_id VARCHAR(50) NOT NULL,
	score DOUBLE NOT NULL,
	name VARCHAR(50) NULL,
	params VARCHAR(255) NULL,
	PRIMARY KEY (game_id, user_id),
	INDEX idx_user_scores_game_score (game_id, score)
) CHARACTER SET utf8mb4`,
		},
		upsert: `INSERT INTO user_scores (game_id, user_id, score, name, params) VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE score = VALUES(score), name = VALUES(name), params = VALUES(params)`,
	},
}
