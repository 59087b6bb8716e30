package lifx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lumiere-lighting/lumiere-client-lifx/internal/infrastructure/config"
	"github.com/lumiere-lighting/lumiere-client-lifx/internal/lights"
)

const (
	defaultTimeout = 10 * time.Second

	// maxErrorBody bounds how much of a failing response is read for its message.
	maxErrorBody = 64 << 10
)

// Client talks to the LIFX HTTP API with a static bearer token.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client from the LIFX configuration section.
//
// Parameters:
//   - cfg: LIFX configuration (api_url, token, timeout)
//
// Returns:
//   - *Client: Ready to use; no request is made
//   - error: ErrMissingToken or ErrInvalidURL
func NewClient(cfg config.LIFXConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	u, err := url.Parse(cfg.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, cfg.APIURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// light is the subset of a LIFX light description the bridge reads.
type light struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ListLights fetches the lights matching selector and returns them ordered by label.
//
// Returns:
//   - lights.Inventory: Sorted inventory, possibly empty
//   - error: *InventoryError on transport failure, status >= 300 or a malformed body
func (c *Client) ListLights(ctx context.Context, selector string) (lights.Inventory, error) {
	endpoint := c.baseURL + "/lights/all?" + url.Values{"selector": {selector}}.Encode()

	resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &InventoryError{Err: err}
	}
	defer drain(resp)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &InventoryError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	var found []light
	if err := json.NewDecoder(resp.Body).Decode(&found); err != nil {
		return nil, &InventoryError{Err: fmt.Errorf("decoding lights: %w", err)}
	}

	devices := make([]lights.Device, len(found))
	for i, l := range found {
		devices[i] = lights.Device{ID: l.ID, Label: l.Label}
	}
	return lights.NewInventory(devices), nil
}

type stateRequest struct {
	States []state `json:"states"`
}

type state struct {
	Selector   string  `json:"selector"`
	Color      string  `json:"color"`
	Brightness float64 `json:"brightness"`
	Duration   float64 `json:"duration"`
}

// StateResult is the outcome the API reports for one light of a batch.
type StateResult struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Status string `json:"status"`
}

// OK reports whether the light acknowledged its state.
func (r StateResult) OK() bool { return r.Status == "ok" }

type stateResponse struct {
	Results []struct {
		Results []StateResult `json:"results"`
	} `json:"results"`
}

// SetStates applies assignments in a single batch request.
//
// Returns:
//   - []StateResult: Per-light outcomes reported by the API, possibly empty
//   - error: *UpdateError on transport failure or status >= 300
func (c *Client) SetStates(ctx context.Context, assignments []lights.Assignment) ([]StateResult, error) {
	body := stateRequest{States: make([]state, len(assignments))}
	for i, a := range assignments {
		body.States[i] = state{
			Selector:   "id:" + a.DeviceID,
			Color:      string(a.Color),
			Brightness: a.Brightness,
			Duration:   a.Duration,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &UpdateError{Err: fmt.Errorf("encoding states: %w", err)}
	}

	resp, err := c.do(ctx, http.MethodPut, c.baseURL+"/lights/states", payload)
	if err != nil {
		return nil, &UpdateError{Err: err}
	}
	defer drain(resp)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &UpdateError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	// The update already happened; an unreadable result body only loses detail.
	var decoded stateResponse
	results := []StateResult{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return results, nil
	}
	for _, op := range decoded.Results {
		results = append(results, op.Results...)
	}
	return results, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// errorMessage extracts the "error" field of a failing response body.
func errorMessage(r io.Reader) string {
	var body struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || json.Unmarshal(data, &body) != nil || body.Error == "" {
		return UnknownErrorMessage
	}
	return body.Error
}

// drain consumes and closes the body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
