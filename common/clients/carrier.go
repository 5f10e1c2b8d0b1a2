package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shuttleops/movesync/common/errs"
	"github.com/shuttleops/movesync/common/metrics"
	"github.com/shuttleops/movesync/common/models"
)

// Status values pushed to a carrier's new_status endpoint
const (
	CarrierStatusSearching        = "SEARCHING"
	CarrierStatusForceToCompleted = "FORCE_TO_COMPLETED"
)

// CarrierDirectory resolves driver ids to carriers and carriers to base URLs
type CarrierDirectory struct {
	endpoints map[string]string
	prefixes  map[string]string
}

// NewCarrierDirectory builds a directory from SCAC -> URL and prefix -> SCAC tables
func NewCarrierDirectory(endpoints, prefixes map[string]string) *CarrierDirectory {
	normalized := make(map[string]string, len(endpoints))
	for scac, url := range endpoints {
		if !strings.HasSuffix(url, "/") {
			url += "/"
		}
		normalized[scac] = url
	}
	return &CarrierDirectory{endpoints: normalized, prefixes: prefixes}
}

// Resolve validates the driver id and looks up its carrier.
// No network call is made.
func (d *CarrierDirectory) Resolve(driverID string) (models.Driver, error) {
	if !models.ValidDriverID(driverID) {
		return models.Driver{}, errs.New(errs.KindInvalidFormat, "", nil)
	}

	scac, ok := d.prefixes[models.DriverPrefix(driverID)]
	if !ok {
		return models.Driver{}, errs.New(errs.KindNotFound, "Carrier not found", nil)
	}
	if _, ok := d.endpoints[scac]; !ok {
		return models.Driver{}, errs.New(errs.KindNotFound, "Carrier not found", nil)
	}

	return models.Driver{ID: driverID, CarrierCode: scac}, nil
}

func (d *CarrierDirectory) baseURL(scac string) (string, error) {
	url, ok := d.endpoints[scac]
	if !ok {
		return "", errs.New(errs.KindNotFound, "Carrier not found", nil)
	}
	return url, nil
}

// CarrierClient talks to the per-carrier driver-state services
type CarrierClient struct {
	dir     *CarrierDirectory
	http    *HTTPClient
	logger  Logger
	metrics *metrics.Metrics
}

// NewCarrierClient creates a carrier client
func NewCarrierClient(dir *CarrierDirectory, timeout time.Duration, logger Logger, m *metrics.Metrics) *CarrierClient {
	httpClient := &http.Client{
		Timeout: timeout,
	}

	return &CarrierClient{
		dir:     dir,
		http:    NewHTTPClient(httpClient, logger),
		logger:  logger,
		metrics: m,
	}
}

// FetchDriver returns the carrier's snapshot of the driver.
// 404 NotFound, 403 Forbidden, 204 NotScheduled, anything else Unavailable.
func (c *CarrierClient) FetchDriver(ctx context.Context, driver models.Driver) (*models.DriverSnapshot, error) {
	base, err := c.dir.baseURL(driver.CarrierCode)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.DoRequest(ctx, http.MethodGet, base+"get_driver/"+driver.ID, nil)
	if err != nil {
		c.metrics.ObserveCarrier(driver.CarrierCode, "get_driver", 0, time.Since(start))
		return nil, errs.New(errs.KindUnavailable, "", fmt.Errorf("failed to fetch driver: %w", err))
	}
	defer resp.Body.Close()
	c.metrics.ObserveCarrier(driver.CarrierCode, "get_driver", resp.StatusCode, time.Since(start))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, errs.New(errs.KindNotFound, "", nil)
	case http.StatusForbidden:
		return nil, errs.New(errs.KindForbidden, "", nil)
	case http.StatusNoContent:
		return nil, errs.New(errs.KindNotScheduled, "", nil)
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, errs.New(errs.KindUnavailable, "",
			fmt.Errorf("get_driver failed: status=%d, body=%s", resp.StatusCode, string(body)))
	}

	var snapshot models.DriverSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, errs.New(errs.KindUnavailable, "", fmt.Errorf("failed to decode driver: %w", err))
	}

	c.logger.Debug("fetched driver snapshot",
		"driver_id", driver.ID,
		"carrier", driver.CarrierCode,
		"current_move_id", snapshot.CurrentMoveID,
		"next_move_id", snapshot.NextMoveID)

	return &snapshot, nil
}

// AssignCurrentRequest is the body of move/current/assign.
// STANDBY sends null origin and destination.
type AssignCurrentRequest struct {
	DriverID        string  `json:"driver_id"`
	MoveID          string  `json:"move_id"`
	Origin          *string `json:"origin"`
	Destination     *string `json:"destination"`
	ContainerNumber *string `json:"container_number,omitempty"`
}

// StatusUpdate is the body of move/current/new_status.
// Container and destination are only sent with SEARCHING.
type StatusUpdate struct {
	DriverID        string  `json:"driver_id"`
	NewStatus       string  `json:"new_status"`
	ContainerNumber *string `json:"container_number,omitempty"`
	Destination     *string `json:"destination,omitempty"`
}

type driverOnly struct {
	DriverID string `json:"driver_id"`
}

type assignNextRequest struct {
	DriverID string `json:"driver_id"`
	MoveID   string `json:"move_id"`
}

// AssignCurrent pushes the driver's current move
func (c *CarrierClient) AssignCurrent(ctx context.Context, driver models.Driver, req AssignCurrentRequest) error {
	req.DriverID = driver.ID
	return c.push(ctx, driver, "move/current/assign", req)
}

// UnassignCurrent clears the driver's current move
func (c *CarrierClient) UnassignCurrent(ctx context.Context, driver models.Driver) error {
	return c.push(ctx, driver, "move/current/unassign", driverOnly{DriverID: driver.ID})
}

// AssignNext pushes the driver's next move
func (c *CarrierClient) AssignNext(ctx context.Context, driver models.Driver, moveID string) error {
	return c.push(ctx, driver, "move/next/assign", assignNextRequest{DriverID: driver.ID, MoveID: moveID})
}

// UnassignNext clears the driver's next move
func (c *CarrierClient) UnassignNext(ctx context.Context, driver models.Driver) error {
	return c.push(ctx, driver, "move/next/unassign", driverOnly{DriverID: driver.ID})
}

// PushStatus sends a status change for the driver's current move
func (c *CarrierClient) PushStatus(ctx context.Context, driver models.Driver, update StatusUpdate) error {
	update.DriverID = driver.ID
	if update.NewStatus != CarrierStatusSearching {
		update.ContainerNumber = nil
		update.Destination = nil
	}
	return c.push(ctx, driver, "move/current/new_status", update)
}

// push POSTs payload; any non-2xx or transport failure is Unavailable
func (c *CarrierClient) push(ctx context.Context, driver models.Driver, endpoint string, payload any) error {
	base, err := c.dir.baseURL(driver.CarrierCode)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.DoJSON(ctx, http.MethodPost, base+endpoint, payload)
	if err != nil {
		c.metrics.ObserveCarrier(driver.CarrierCode, endpoint, 0, time.Since(start))
		return errs.New(errs.KindUnavailable, "", fmt.Errorf("%s: %w", endpoint, err))
	}
	defer resp.Body.Close()
	c.metrics.ObserveCarrier(driver.CarrierCode, endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return errs.New(errs.KindUnavailable, "",
			fmt.Errorf("%s failed: status=%d, body=%s", endpoint, resp.StatusCode, string(body)))
	}

	c.logger.Info("pushed to carrier",
		"driver_id", driver.ID,
		"carrier", driver.CarrierCode,
		"endpoint", endpoint)

	return nil
}

// Resolve validates a driver id and resolves its carrier without a network call
func (c *CarrierClient) Resolve(driverID string) (models.Driver, error) {
	return c.dir.Resolve(driverID)
}
