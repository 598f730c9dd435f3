package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"pinforge/internal/models"
	"pinforge/internal/pkg/errors"
)

// maxTableBytes caps a fetched data table. Campaigns run to thousands of
// rows, not millions.
const maxTableBytes = 32 << 20

// RowFetcher resolves a campaign's data table. Inline rows win; otherwise
// the data url is fetched as a JSON array of flat objects.
type RowFetcher struct {
	client *http.Client
}

func NewRowFetcher(client *http.Client) *RowFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RowFetcher{client: client}
}

func (f *RowFetcher) Rows(ctx context.Context, camp *models.Campaign) ([]models.Row, error) {
	if len(camp.Rows) > 0 {
		return camp.Rows, nil
	}
	if camp.DataURL == "" {
		return nil, errors.Configuration("campaign has no rows and no data url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, camp.DataURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "pipeline.rows", "building data url request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "pipeline.rows", "fetching data table")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.CodeConfiguration, "data url returned status %d", resp.StatusCode)
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxTableBytes))
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "pipeline.rows", "decoding data table")
	}

	rows := make([]models.Row, len(raw))
	for i, rec := range raw {
		row := make(models.Row, len(rec))
		for k, v := range rec {
			row[k] = stringValue(v)
		}
		rows[i] = row
	}
	return rows, nil
}

// stringValue flattens a JSON value to the plain string the substitution
// layer works with. Numbers keep their source literal (no float round trip);
// nested values keep their JSON text.
func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
