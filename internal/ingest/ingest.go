package ingest

import (
	"time"
)

const (
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Run is one pipeline execution and its counters.
type Run struct {
	ID                string     `json:"id"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
	Status            string     `json:"status"`
	DryRun            bool       `json:"dry_run"`
	ListName          string     `json:"list_name"`
	ListPublishedDate string     `json:"list_published_date"`
	BooksListed       int        `json:"books_listed"`
	BooksEnriched     int        `json:"books_enriched"`
	BooksSkipped      int        `json:"books_skipped"`
	BooksLoaded       int64      `json:"books_loaded"`
	Violations        int        `json:"violations"`
	Warnings          int        `json:"warnings"`
	ExportPath        string     `json:"export_path,omitempty"`
	Error             string     `json:"error,omitempty"`
}
