package models

import (
	"fmt"
	"time"
)

type CampaignStatus string

const (
	StatusPending    CampaignStatus = "pending"
	StatusProcessing CampaignStatus = "processing"
	StatusPaused     CampaignStatus = "paused"
	StatusCompleted  CampaignStatus = "completed"
	StatusFailed     CampaignStatus = "failed"
)

// Row is one record of the campaign's data table, keyed by column name.
// Values are always plain strings; numeric-looking values get no special
// formatting.
type Row map[string]string

// Campaign pairs one or more templates with a data table and tracks the run
// that turns every row into a pin. With multiple templates, rows are
// distributed round-robin in order.
type Campaign struct {
	ID           string            `json:"id"`
	Name         string            `json:"name,omitempty"`
	TemplateIDs  []string          `json:"templateIds"`
	FieldMapping map[string]string `json:"fieldMapping,omitempty"`
	Rows         []Row             `json:"rows,omitempty"`
	DataURL      string            `json:"dataUrl,omitempty"`
	Total        int               `json:"total"`
	Completed    int               `json:"completed"`
	Failed       int               `json:"failed"`
	Status       CampaignStatus    `json:"status"`
	BatchSize    int               `json:"batchSize,omitempty"`
	CreatedAt    time.Time         `json:"created_at,omitempty"`
}

// Validate reports the configuration failures that make a run impossible.
// A failing campaign is marked failed on its own; other campaigns are
// unaffected.
func (c *Campaign) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("campaign missing id")
	}
	if len(c.TemplateIDs) == 0 {
		return fmt.Errorf("campaign %s: no template assigned", c.ID)
	}
	if len(c.Rows) == 0 && c.DataURL == "" {
		return fmt.Errorf("campaign %s: no data rows and no data url", c.ID)
	}
	return nil
}

// TemplateFor returns the template id serving the given row, round-robin
// across the ordered template list.
func (c *Campaign) TemplateFor(rowIndex int) string {
	if len(c.TemplateIDs) == 0 {
		return ""
	}
	return c.TemplateIDs[rowIndex%len(c.TemplateIDs)]
}

// Progress is the distributed per-run counter record. It lives in the cache
// service as a hash and is mirrored to the store; Cursor is the index of the
// next unprocessed row so a paused run resumes instead of restarting.
type Progress struct {
	CampaignID string         `json:"campaignId"`
	Total      int            `json:"total"`
	Completed  int            `json:"completed"`
	Failed     int            `json:"failed"`
	Cursor     int            `json:"cursor"`
	Status     CampaignStatus `json:"status"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Done is the number of rows with a decided outcome.
func (p *Progress) Done() int { return p.Completed + p.Failed }

// Terminal reports whether every row has an outcome. This derived check, not
// a separate finished signal, is what ends a run.
func (p *Progress) Terminal() bool { return p.Total > 0 && p.Done() >= p.Total }

// TerminalStatus is the status a terminal run settles on: failed as soon as
// any row failed, completed otherwise. Partial success is a valid terminal
// state; the per-row errors stay available either way.
func (p *Progress) TerminalStatus() CampaignStatus {
	if p.Failed > 0 {
		return StatusFailed
	}
	return StatusCompleted
}
