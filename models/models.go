package models

import (
	"time"
)

/*
 Application layer data models.
*/

type RecordKind int

const (
	KindText RecordKind = iota
	KindFile
)

// ShareRecord is the persisted metadata (and, for text shares, the content
// itself) behind one access code. It is stored as JSON under the record key
// namespace with no store-level TTL: expiry travels in-band via ExpiredAt so
// that the sweeper can still find the record and reconcile its blob after the
// deadline passes.
type ShareRecord struct {
	Code       string     `json:"code"`
	Text       string     `json:"text,omitempty"`
	Size       int64      `json:"size"`
	ExpiredAt  *time.Time `json:"expired_at"`
	UsedCount  int64      `json:"used_count"`
	CreatedAt  time.Time  `json:"created_at"`
	LastAccess *time.Time `json:"last_access,omitempty"`
	// Prefix and Suffix hold the original base filename and extension,
	// derived once at creation, so the download path can reconstruct a
	// display filename without trusting the blob key.
	Prefix string `json:"prefix"`
	Suffix string `json:"suffix"`
	// BlobKey references the file bytes in the blob backend. Empty for text
	// shares.
	BlobKey string `json:"blob_key,omitempty"`
}

func (r *ShareRecord) Kind() RecordKind {
	if r.BlobKey != "" {
		return KindFile
	}
	return KindText
}

// Expired reports whether the record is past its expiry. A record with no
// ExpiredAt never expires. The read path must check this on every access since
// expired records linger in the store until the sweeper reclaims them.
func (r *ShareRecord) Expired() bool {
	return r.ExpiredAt != nil && time.Now().After(*r.ExpiredAt)
}

// FileName reconstructs the display/download filename.
func (r *ShareRecord) FileName() string {
	return r.Prefix + r.Suffix
}

// SweepResult summarizes one sweeper run.
type SweepResult struct {
	Total     int       `json:"total"`
	Cleaned   int       `json:"cleaned"`
	Errors    int       `json:"errors"`
	Timestamp time.Time `json:"timestamp"`
}

// CleanupStats is the rolling per-day sweeper statistic kept for
// observability.
type CleanupStats struct {
	Runs         int         `json:"runs"`
	TotalCleaned int         `json:"total_cleaned"`
	LastRun      time.Time   `json:"last_run"`
	LastResult   SweepResult `json:"last_result"`
}
