package attest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"sync"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the OpenAttest REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// Info describes the origin of a claim.
type Info struct {
	Provider   string `json:"provider"`
	Parameters string `json:"parameters"`
	Context    string `json:"context"`
}

// Claim is the signed claim body. Identifier and Owner are 0x-prefixed hex.
type Claim struct {
	Identifier string `json:"identifier"`
	Owner      string `json:"owner"`
	TimestampS uint64 `json:"timestamp_s"`
	Epoch      uint64 `json:"epoch"`
}

// Proof bundles a claim with its witness signatures (0x-prefixed hex).
type Proof struct {
	Info       Info     `json:"info"`
	Claim      Claim    `json:"claim"`
	Signatures []string `json:"signatures"`
}

// Submission represents the payload required to create a verification job.
// ID is optional and enables idempotent retries.
type Submission struct {
	ID    string `json:"id,omitempty"`
	Proof Proof  `json:"proof"`
}

// Record contains the outcome of a completed verification.
type Record struct {
	Outcome    string            `json:"outcome"`
	Reason     string            `json:"reason,omitempty"`
	Identifier string            `json:"identifier"`
	Owner      string            `json:"owner"`
	Epoch      uint64            `json:"epoch"`
	Signers    []string          `json:"signers,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// Job contains the state of an asynchronous verification job.
type Job struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	Attempts   int     `json:"attempts"`
	MaxRetries int     `json:"max_retries"`
	LastError  string  `json:"last_error,omitempty"`
	ErrorCode  string  `json:"error_code,omitempty"`
	Result     *Record `json:"result,omitempty"`
	CreatedAt  int64   `json:"created_at"`
	UpdatedAt  int64   `json:"updated_at"`
}

// Witness describes a registered witness node.
type Witness struct {
	Address string `json:"address"`
	Host    string `json:"host"`
}

// Epoch is a snapshot of the authorised witness set.
type Epoch struct {
	ID                 uint64    `json:"id"`
	Witnesses          []Witness `json:"witnesses"`
	RequiredSignatures int       `json:"required_signatures"`
	ValidFrom          int64     `json:"valid_from"`
	ValidUntil         int64     `json:"valid_until,omitempty"`
	CreatedAt          int64     `json:"created_at"`
}

// EpochSubmission represents the payload required to create a new epoch.
type EpochSubmission struct {
	Witnesses          []Witness `json:"witnesses"`
	RequiredSignatures int       `json:"required_signatures"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("attest api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("attest api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the OpenAttest API. When httpClient is
// nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// Verify performs a synchronous proof verification.
func (c *Client) Verify(ctx context.Context, proof Proof) (Record, error) {
	var record Record
	if err := c.post(ctx, "/api/v1/verify", proof, &record, false); err != nil {
		return Record{}, err
	}
	return record, nil
}

// SubmitProof enqueues a proof for asynchronous verification.
func (c *Client) SubmitProof(ctx context.Context, submission Submission) (Job, error) {
	var created Job
	if err := c.post(ctx, "/api/v1/proofs", submission, &created, false); err != nil {
		return Job{}, err
	}
	return created, nil
}

// GetProof fetches job state by identifier. When waitSeconds is positive the
// server holds the request until the job completes or the window expires.
func (c *Client) GetProof(ctx context.Context, jobID string, waitSeconds int) (Job, error) {
	endpoint := "/api/v1/proofs/" + url.PathEscape(jobID)
	if waitSeconds > 0 {
		endpoint += "?wait_seconds=" + strconv.Itoa(waitSeconds)
	}
	var found Job
	if err := c.get(ctx, endpoint, &found, false); err != nil {
		return Job{}, err
	}
	return found, nil
}

// CurrentEpoch returns the epoch currently accepting new claims.
func (c *Client) CurrentEpoch(ctx context.Context) (Epoch, error) {
	var current Epoch
	if err := c.get(ctx, "/api/v1/epochs/current", &current, false); err != nil {
		return Epoch{}, err
	}
	return current, nil
}

// GetEpoch returns a historical epoch by number.
func (c *Client) GetEpoch(ctx context.Context, id uint64) (Epoch, error) {
	var found Epoch
	if err := c.get(ctx, "/api/v1/epochs/"+strconv.FormatUint(id, 10), &found, false); err != nil {
		return Epoch{}, err
	}
	return found, nil
}

// AddEpoch appends a new epoch. Requires an access token with epochs:write.
func (c *Client) AddEpoch(ctx context.Context, submission EpochSubmission) (Epoch, error) {
	var created Epoch
	if err := c.post(ctx, "/api/v1/epochs", submission, &created, true); err != nil {
		return Epoch{}, err
	}
	return created, nil
}

// AccessToken returns the currently stored token string.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// SetAccessToken stores the static bearer token used for admin endpoints.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any, withAuth bool) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body), withAuth)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any, withAuth bool) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil, withAuth)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader, withAuth bool) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parsed.Path), RawQuery: parsed.RawQuery}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if withAuth {
		token := c.AccessToken()
		if token == "" {
			return nil, errors.New("attest: access token is not set")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr APIError
		apiErr.StatusCode = resp.StatusCode
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}

	if out == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
