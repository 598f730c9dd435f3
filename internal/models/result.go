package models

import "time"

// RenderResult is one row's outcome, consumed immediately by the persistence
// collaborator and never stored in memory beyond its batch.
type RenderResult struct {
	RowIndex int
	PNG      []byte
	Err      error
}

// Pin is the persisted record of one generated output.
type Pin struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaignId"`
	RowIndex   int       `json:"rowIndex"`
	ObjectKey  string    `json:"objectKey,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

const (
	PinStatusDone   = "DONE"
	PinStatusFailed = "FAILED"
)

// RowError is one failed row of a campaign, surfaced to the caller when the
// run ends failed or partially failed.
type RowError struct {
	RowIndex int    `json:"rowIndex"`
	Message  string `json:"message"`
}
