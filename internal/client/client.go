package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/receipt-pipeline/internal/receipt"
)

// DefaultSettle is how long UploadReceipt waits after the upload before it
// reads the records back. Processing is asynchronous.
const DefaultSettle = 2 * time.Second

// Config holds client settings
type Config struct {
	BaseURL  string
	Username string
	Password string
	// Settle overrides DefaultSettle when non-zero
	Settle time.Duration
}

// Client talks to the receipt pipeline's HTTP API and uploads files straight
// to the content store.
type Client struct {
	baseURL  string
	username string
	password string
	settle   time.Duration
	http     *http.Client
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a Client with a default HTTP client
func New(cfg Config) *Client {
	return NewWithHTTPClient(cfg, &http.Client{Timeout: 60 * time.Second})
}

// NewWithHTTPClient creates a Client with a custom HTTP client for testing
func NewWithHTTPClient(cfg Config, httpClient *http.Client) *Client {
	settle := cfg.Settle
	if settle == 0 {
		settle = DefaultSettle
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		settle:   settle,
		http:     httpClient,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// StatusError is returned when a server answers with an unexpected status
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	return req, nil
}

// RequestUploadURL asks the server for a signed URL allowing one PUT of
// fileName with fileType.
func (c *Client) RequestUploadURL(ctx context.Context, fileName, fileType string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"fileName": fileName,
		"fileType": fileType,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/upload-url", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting upload url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError("requesting upload url", resp)
	}

	var out struct {
		SignedURL string `json:"signedUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding upload url: %w", err)
	}
	if out.SignedURL == "" {
		return "", errors.New("server returned an empty upload url")
	}
	return out.SignedURL, nil
}

// Upload PUTs data to a signed URL. contentType must match the type the URL
// was issued for or the store rejects the signature.
func (c *Client) Upload(ctx context.Context, signedURL, contentType string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("uploading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError("uploading", resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// ListReceipts returns every stored receipt in server order
func (c *Client) ListReceipts(ctx context.Context) ([]*receipt.Receipt, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/receipts", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("listing receipts", resp)
	}

	receipts := make([]*receipt.Receipt, 0)
	if err := json.NewDecoder(resp.Body).Decode(&receipts); err != nil {
		return nil, fmt.Errorf("decoding receipts: %w", err)
	}
	return receipts, nil
}

// Latest fetches all receipts and picks the most recently processed one
// locally. It returns nil without an error when there are none.
func (c *Client) Latest(ctx context.Context) (*receipt.Receipt, error) {
	receipts, err := c.ListReceipts(ctx)
	if err != nil {
		return nil, err
	}
	return receipt.Latest(receipts), nil
}

// UploadReceipt runs the whole client flow: request a URL, upload the file,
// wait for processing to settle and return the latest receipt.
func (c *Client) UploadReceipt(ctx context.Context, fileName, contentType string, data []byte) (*receipt.Receipt, error) {
	signedURL, err := c.RequestUploadURL(ctx, fileName, contentType)
	if err != nil {
		return nil, err
	}
	slog.Debug("Received upload URL", "file_name", fileName)

	if err := c.Upload(ctx, signedURL, contentType, data); err != nil {
		return nil, err
	}
	slog.Info("File uploaded", "file_name", fileName, "bytes", len(data))

	if err := c.sleep(ctx, c.settle); err != nil {
		return nil, err
	}
	return c.Latest(ctx)
}
