package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"production-dashboard-backend/config"
)

const (
	workOrderFields = `["name","qty","produced_qty","status",` +
		`"custom_machine_id","custom_pipe_size","custom_location"]`
	pendingFilter = `[["status","in",["Not Started","In Process"]]]`
)

// Client is a thin synchronous client for the ERPNext "Work Order"
// resource. Every call is best-effort: transport failures are logged and
// surfaced as empty results or a false ok flag, never as an error. The
// periodic sync loop corrects any write that was lost.
type Client struct {
	baseURL         string
	apiKey          string
	apiSecret       string
	defaultLocation string
	defaultPipeSize string
	client          *http.Client
}

// NewClient creates an ERP client from the configuration.
func NewClient(cfg *config.ERPConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:         cfg.URL,
		apiKey:          cfg.APIKey,
		apiSecret:       cfg.APISecret,
		defaultLocation: cfg.DefaultLocation,
		defaultPipeSize: cfg.DefaultPipeSize,
		client:          &http.Client{Timeout: timeout},
	}
}

// Configured reports whether the client has a URL and credentials. When it
// does not, every operation is a no-op.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.apiKey != "" && c.apiSecret != ""
}

// ListPendingWorkOrders fetches work orders with status "Not Started" or
// "In Process", filling missing location/pipe-size fields with defaults
// and pushing those fixes back to the ERP.
func (c *Client) ListPendingWorkOrders(ctx context.Context) []WorkOrder {
	orders := c.list(ctx, pendingFilter)
	c.normalize(ctx, orders)
	return orders
}

// ListAllWorkOrders fetches work orders without a status filter. Used by
// the admin work-order view.
func (c *Client) ListAllWorkOrders(ctx context.Context) []WorkOrder {
	return c.list(ctx, "")
}

func (c *Client) list(ctx context.Context, filters string) []WorkOrder {
	if !c.Configured() {
		log.Println("ERP credentials missing; skipping work order fetch")
		return nil
	}

	params := url.Values{}
	params.Set("fields", workOrderFields)
	if filters != "" {
		params.Set("filters", filters)
	}
	reqURL := fmt.Sprintf("%s/api/resource/%s?%s", c.baseURL, url.PathEscape("Work Order"), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		log.Printf("ERP fetch: failed to build request: %v", err)
		return nil
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("ERP fetch failed: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("ERP fetch returned status %d", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("ERP fetch: failed to read response: %v", err)
		return nil
	}

	var envelope listResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		log.Printf("ERP fetch: failed to decode response: %v", err)
		return nil
	}
	return envelope.Data
}

// normalize fills missing location/pipe-size fields with defaults, pushes
// the fix to the ERP, and applies the same delta in memory so downstream
// consumers never see an empty location or pipe size.
func (c *Client) normalize(ctx context.Context, orders []WorkOrder) {
	for i := range orders {
		updates := map[string]any{}
		if orders[i].Location == "" {
			updates["custom_location"] = c.defaultLocation
		}
		if orders[i].PipeSize == "" {
			updates["custom_pipe_size"] = c.defaultPipeSize
		}
		if len(updates) == 0 {
			continue
		}
		c.SetFields(ctx, orders[i].Name, updates)
		if v, ok := updates["custom_location"]; ok {
			orders[i].Location = v.(string)
		}
		if v, ok := updates["custom_pipe_size"]; ok {
			orders[i].PipeSize = v.(string)
		}
	}
}

// SetFields updates arbitrary fields on a work order. Returns false on
// any failure.
func (c *Client) SetFields(ctx context.Context, name string, fields map[string]any) bool {
	if name == "" || len(fields) == 0 {
		return false
	}
	return c.put(ctx, name, fields)
}

// SetStatus updates the status of a work order. Returns false on any
// failure.
func (c *Client) SetStatus(ctx context.Context, name, status string) bool {
	if name == "" {
		return false
	}
	return c.put(ctx, name, map[string]any{"status": status})
}

func (c *Client) put(ctx context.Context, name string, body map[string]any) bool {
	if !c.Configured() {
		return false
	}

	payload, err := json.Marshal(body)
	if err != nil {
		log.Printf("ERP update %s: failed to marshal payload: %v", name, err)
		return false
	}

	reqURL := fmt.Sprintf("%s/api/resource/%s/%s", c.baseURL, url.PathEscape("Work Order"), url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, reqURL, bytes.NewReader(payload))
	if err != nil {
		log.Printf("ERP update %s: failed to build request: %v", name, err)
		return false
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("ERP update %s failed: %v", name, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("ERP update %s returned status %d", name, resp.StatusCode)
		return false
	}

	log.Printf("ERP work order %s updated: %v", name, body)
	return true
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf("token %s:%s", c.apiKey, c.apiSecret))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
}
