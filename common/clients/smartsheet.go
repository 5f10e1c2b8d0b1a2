package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shuttleops/movesync/common/metrics"
)

// SheetClient is a minimal Smartsheet REST client
type SheetClient struct {
	baseURL string
	http    *HTTPClient
	logger  Logger
	metrics *metrics.Metrics
}

// NewSheetClient creates a Smartsheet client authenticated with token
func NewSheetClient(baseURL, token string, timeout time.Duration, logger Logger, m *metrics.Metrics) *SheetClient {
	httpClient := &http.Client{
		Timeout: timeout,
	}

	return &SheetClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    NewHTTPClient(httpClient, logger).WithHeader("Authorization", "Bearer "+token),
		logger:  logger,
		metrics: m,
	}
}

// Cell is one cell of a row. Value is whatever JSON scalar the API returned.
type Cell struct {
	ColumnID     int64  `json:"columnId"`
	Value        any    `json:"value,omitempty"`
	DisplayValue string `json:"displayValue,omitempty"`
}

// String renders the cell value; missing values become ""
func (c Cell) String() string {
	switch v := c.Value.(type) {
	case nil:
		return c.DisplayValue
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Row is one sheet row
type Row struct {
	ID        int64  `json:"id"`
	RowNumber int    `json:"rowNumber"`
	Cells     []Cell `json:"cells"`
}

// Sheet is the subset of a sheet payload we read
type Sheet struct {
	ID      int64 `json:"id"`
	Version int64 `json:"version"`
	Rows    []Row `json:"rows"`
}

// CellUpdate writes one column. Value "" clears the cell, so it is never omitted.
type CellUpdate struct {
	ColumnID int64  `json:"columnId"`
	Value    string `json:"value"`
}

// RowUpdate is a sparse write to one row; columns not listed are untouched
type RowUpdate struct {
	ID    int64        `json:"id"`
	Cells []CellUpdate `json:"cells"`
}

// GetSheetVersion returns the sheet's current version number
func (c *SheetClient) GetSheetVersion(ctx context.Context, sheetID int64) (int64, error) {
	var out struct {
		Version int64 `json:"version"`
	}
	url := fmt.Sprintf("%s/sheets/%d/version", c.baseURL, sheetID)
	if err := c.do(ctx, "version", http.MethodGet, url, nil, &out); err != nil {
		return 0, err
	}
	return out.Version, nil
}

// GetSheet fetches all rows restricted to columnIDs
func (c *SheetClient) GetSheet(ctx context.Context, sheetID int64, columnIDs []int64) (*Sheet, error) {
	ids := make([]string, 0, len(columnIDs))
	for _, id := range columnIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}

	url := fmt.Sprintf("%s/sheets/%d", c.baseURL, sheetID)
	if len(ids) > 0 {
		url += "?columnIds=" + strings.Join(ids, ",")
	}

	var sheet Sheet
	if err := c.do(ctx, "get_sheet", http.MethodGet, url, nil, &sheet); err != nil {
		return nil, err
	}

	c.logger.Debug("fetched sheet",
		"sheet_id", sheetID,
		"version", sheet.Version,
		"rows", len(sheet.Rows))

	return &sheet, nil
}

// GetRow fetches a single row
func (c *SheetClient) GetRow(ctx context.Context, sheetID, rowID int64) (*Row, error) {
	var row Row
	url := fmt.Sprintf("%s/sheets/%d/rows/%d", c.baseURL, sheetID, rowID)
	if err := c.do(ctx, "get_row", http.MethodGet, url, nil, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateRows applies sparse row updates
func (c *SheetClient) UpdateRows(ctx context.Context, sheetID int64, rows []RowUpdate) error {
	url := fmt.Sprintf("%s/sheets/%d/rows", c.baseURL, sheetID)
	return c.do(ctx, "update_rows", http.MethodPut, url, rows, nil)
}

func (c *SheetClient) do(ctx context.Context, operation, method, url string, payload, out any) error {
	start := time.Now()
	resp, err := c.http.DoJSON(ctx, method, url, payload)
	if err != nil {
		c.metrics.ObserveSheet(operation, 0, time.Since(start))
		return fmt.Errorf("sheet %s: %w", operation, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveSheet(operation, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sheet %s failed: status=%d, body=%s", operation, resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode sheet %s response: %w", operation, err)
	}
	return nil
}
