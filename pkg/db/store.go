package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

// CreateOrGetWord returns the id of the user's word with the given text,
// inserting it first when absent. Comparison is case-insensitive. The
// second return value reports whether a new row was created.
func CreateOrGetWord(db DBExecutor, userID int64, text string) (int64, bool, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, false, fmt.Errorf("word must be non-empty")
	}

	const maxRetries = 3

	var id int64
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := db.QueryRow(
			`SELECT id FROM words WHERE user_id = ? AND english_word = ?`,
			userID, trimmed,
		).Scan(&id)
		if err == nil {
			return id, false, nil
		}
		if err != sql.ErrNoRows {
			return 0, false, err
		}

		res, err := db.Exec(
			`INSERT INTO words (user_id, english_word) VALUES (?, ?)`,
			userID, trimmed,
		)
		if err != nil {
			// Another transaction may have inserted the same word; retry the SELECT.
			if isUniqueConstraintErr(err) {
				continue
			}
			return 0, false, err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, false, err
		}
		return id, true, nil
	}

	return 0, false, fmt.Errorf("could not create or get word after %d retries", maxRetries)
}

// CreateOrGetSource returns the id of the user's source with the given
// name, creating it from src when absent. (user_id, source_name) is
// unique: a second source with the same name merges into the first.
func CreateOrGetSource(db DBExecutor, src *Source) (int64, bool, error) {
	name := strings.TrimSpace(src.SourceName)
	if name == "" {
		return 0, false, fmt.Errorf("sourceName must be non-empty")
	}

	const maxRetries = 3

	var id int64
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := db.QueryRow(
			`SELECT id FROM sources WHERE user_id = ? AND source_name = ?`,
			src.UserID, name,
		).Scan(&id)
		if err == nil {
			return id, false, nil
		}
		if err != sql.ErrNoRows {
			return 0, false, err
		}

		res, err := db.Exec(
			`INSERT INTO sources (user_id, source_name, source_type, file_size, title, description, skill, task)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			src.UserID, name, src.SourceType, src.FileSize, src.Title, src.Description, src.Skill, taskOrDefault(src.Task),
		)
		if err != nil {
			if isUniqueConstraintErr(err) {
				continue
			}
			return 0, false, err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, false, err
		}
		return id, true, nil
	}

	return 0, false, fmt.Errorf("could not create or get source after %d retries", maxRetries)
}

func taskOrDefault(task string) string {
	if strings.TrimSpace(task) == "" {
		return "Vocabulary"
	}
	return task
}

// LinkWordToSource records that the source referenced the word. It
// returns false when the (source, word) pair already exists; an existing
// link is a duplicate, not an error.
func LinkWordToSource(db DBExecutor, sourceID, wordID int64, isNew bool) (bool, error) {
	if sourceID <= 0 {
		return false, fmt.Errorf("sourceID must be positive")
	}
	if wordID <= 0 {
		return false, fmt.Errorf("wordID must be positive")
	}
	res, err := db.Exec(
		`INSERT OR IGNORE INTO source_words (source_id, word_id, is_new) VALUES (?, ?, ?)`,
		sourceID, wordID, boolToInt(isNew),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// AddSourceCounters adds a completed run's batch totals to the source's
// running counters. Counters only ever grow.
func AddSourceCounters(db DBExecutor, sourceID int64, total, added, duplicates int) error {
	_, err := db.Exec(
		`UPDATE sources SET
			total_words = total_words + ?,
			new_words = new_words + ?,
			duplicate_words = duplicate_words + ?,
			card_qty = card_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		total, added, duplicates, total, sourceID,
	)
	return err
}

// SetSourceLevel stores the aggregated CEFR level for a source.
func SetSourceLevel(db DBExecutor, sourceID int64, level string) error {
	_, err := db.Exec(
		`UPDATE sources SET level = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		level, sourceID,
	)
	return err
}

// GetSource loads a source by id.
func GetSource(db DBExecutor, sourceID int64) (*Source, error) {
	var s Source
	var title, description, level, skill sql.NullString
	err := db.QueryRow(
		`SELECT id, user_id, source_name, source_type, file_size,
			total_words, new_words, duplicate_words,
			title, description, level, skill, task, card_qty,
			created_at, updated_at
		 FROM sources WHERE id = ?`, sourceID,
	).Scan(&s.ID, &s.UserID, &s.SourceName, &s.SourceType, &s.FileSize,
		&s.TotalWords, &s.NewWords, &s.DuplicateWords,
		&title, &description, &level, &skill, &s.Task, &s.CardQty,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Title = title.String
	s.Description = description.String
	s.Level = level.String
	s.Skill = skill.String
	return &s, nil
}

// CountWordsMissingTranslation reports how many of the user's words
// still have no translation.
func CountWordsMissingTranslation(db DBExecutor, userID int64) (int, error) {
	var n int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM words
		 WHERE user_id = ? AND (translation IS NULL OR translation = '')`, userID,
	).Scan(&n)
	return n, err
}

// WordsMissingTranslation returns every word of the user with no
// translation yet, in insertion order. This is corpus-wide, not scoped
// to a source.
func WordsMissingTranslation(db DBExecutor, userID int64) ([]Word, error) {
	rows, err := db.Query(
		`SELECT id, english_word FROM words
		 WHERE user_id = ? AND (translation IS NULL OR translation = '')
		 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Word
	for rows.Next() {
		var w Word
		if err := rows.Scan(&w.ID, &w.EnglishWord); err != nil {
			return nil, err
		}
		w.UserID = userID
		out = append(out, w)
	}
	return out, rows.Err()
}

// UpdateWordEnrichment fills derived columns for the user's word,
// keeping any existing non-empty value when the incoming one is blank.
// It returns false when no row matched the headword.
func UpdateWordEnrichment(db DBExecutor, userID int64, w *Word) (bool, error) {
	headword := strings.TrimSpace(w.EnglishWord)
	if headword == "" {
		return false, fmt.Errorf("word must be non-empty")
	}
	res, err := db.Exec(
		`UPDATE words SET
			word_type = COALESCE(NULLIF(?, ''), word_type),
			translation = COALESCE(NULLIF(?, ''), translation),
			category1 = COALESCE(NULLIF(?, ''), category1),
			category2 = COALESCE(NULLIF(?, ''), category2),
			category3 = COALESCE(NULLIF(?, ''), category3),
			level = COALESCE(NULLIF(?, ''), level),
			example_en = COALESCE(NULLIF(?, ''), example_en),
			example_translated = COALESCE(NULLIF(?, ''), example_translated)
		 WHERE user_id = ? AND english_word = ?`,
		w.WordType, w.Translation, w.Category1, w.Category2, w.Category3,
		w.Level, w.ExampleEn, w.ExampleTranslated,
		userID, headword,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// EnrichedWordSamples returns up to limit fully-enriched words for the
// user, used as format examples in enrichment prompts.
func EnrichedWordSamples(db DBExecutor, userID int64, limit int) ([]Word, error) {
	rows, err := db.Query(
		`SELECT english_word, word_type, translation, level, example_en, example_translated
		 FROM words
		 WHERE user_id = ?
		   AND translation IS NOT NULL AND translation != ''
		   AND level IS NOT NULL AND level != ''
		 ORDER BY id LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Word
	for rows.Next() {
		var w Word
		var wt, tr, lv, ee, et sql.NullString
		if err := rows.Scan(&w.EnglishWord, &wt, &tr, &lv, &ee, &et); err != nil {
			return nil, err
		}
		w.WordType = wt.String
		w.Translation = tr.String
		w.Level = lv.String
		w.ExampleEn = ee.String
		w.ExampleTranslated = et.String
		out = append(out, w)
	}
	return out, rows.Err()
}

// LevelCounts counts the source's words by CEFR level, ignoring words
// with no assigned level.
func LevelCounts(db DBExecutor, sourceID int64) (map[string]int, error) {
	rows, err := db.Query(
		`SELECT w.level, COUNT(*) FROM words w
		 JOIN source_words sw ON sw.word_id = w.id
		 WHERE sw.source_id = ? AND w.level IS NOT NULL AND w.level != ''
		 GROUP BY w.level`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var lvl string
		var n int
		if err := rows.Scan(&lvl, &n); err != nil {
			return nil, err
		}
		counts[lvl] = n
	}
	return counts, rows.Err()
}

// GetWordsBySource returns the words a source references, in link order.
func GetWordsBySource(db DBExecutor, sourceID int64) ([]Word, error) {
	rows, err := db.Query(
		`SELECT w.id, w.user_id, w.english_word, w.word_type, w.translation, w.level, w.example_en, w.example_translated
		 FROM words w
		 JOIN source_words sw ON sw.word_id = w.id
		 WHERE sw.source_id = ?
		 ORDER BY sw.id`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Word
	for rows.Next() {
		var w Word
		var wt, tr, lv, ee, et sql.NullString
		if err := rows.Scan(&w.ID, &w.UserID, &w.EnglishWord, &wt, &tr, &lv, &ee, &et); err != nil {
			return nil, err
		}
		w.WordType = wt.String
		w.Translation = tr.String
		w.Level = lv.String
		w.ExampleEn = ee.String
		w.ExampleTranslated = et.String
		out = append(out, w)
	}
	return out, rows.Err()
}
