package db

import "time"

// Source records one ingestion run's provenance and the metadata used to
// seed a study deck from it.
type Source struct {
	ID             int64
	UserID         int64
	SourceName     string
	SourceType     string
	FileSize       int64
	TotalWords     int
	NewWords       int
	DuplicateWords int
	Title          string
	Description    string
	Level          string
	Skill          string
	Task           string
	CardQty        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Word is a per-user vocabulary entry. EnglishWord is unique per user,
// compared case-insensitively.
type Word struct {
	ID                int64
	UserID            int64
	EnglishWord       string
	WordType          string
	Translation       string
	Category1         string
	Category2         string
	Category3         string
	Level             string
	ExampleEn         string
	ExampleTranslated string
	ImageURL          string
	Known             bool
	CreatedAt         time.Time
}

// SourceWord links a Source with a Word it introduced or re-referenced.
// IsNew is true when the association created the Word.
type SourceWord struct {
	ID        int64
	SourceID  int64
	WordID    int64
	IsNew     bool
	CreatedAt time.Time
}
