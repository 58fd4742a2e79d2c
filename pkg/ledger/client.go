package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ecochain/platform/pkg/common/httpclient"
	"github.com/ecochain/platform/pkg/common/logger"
)

// Operation names, also used as MintOutcome identifiers downstream.
const (
	OpRewardToken    = "reward_token"
	OpCertificateNFT = "certificate_nft"
	OpProofRegistry  = "proof_registry"
)

// TxReceipt describes one confirmed ledger write.
type TxReceipt struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`
	TokenID     int64  `json:"token_id,omitempty"`
}

// Client is the consumed ledger contract: three independent operations, each
// returning a receipt or a structured error. Implementations must not retry
// submissions on their own.
type Client interface {
	MintRewardTokens(ctx context.Context, wallet string, amountWei *big.Int) (*TxReceipt, error)
	MintCertificate(ctx context.Context, wallet, metadataURI string, carbonWei *big.Int) (*TxReceipt, error)
	RegisterProof(ctx context.Context, proofID, wallet string, carbonWei *big.Int, metadataURI string) (*TxReceipt, error)
}

var errTxPending = errors.New("transaction pending")

// HTTPClient talks to a chain-relay service that holds the signing keys and
// submits transactions on the platform's behalf. Submission is a single POST;
// confirmation is polled with backoff and bounded by confirmTimeout.
type HTTPClient struct {
	baseURL        string
	apiKey         string
	client         *http.Client
	confirmTimeout time.Duration
	pollInterval   time.Duration
}

func NewHTTPClient(baseURL, apiKey string, requestTimeout, confirmTimeout time.Duration) *HTTPClient {
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}
	if confirmTimeout <= 0 {
		confirmTimeout = 90 * time.Second
	}
	return &HTTPClient{
		baseURL:        baseURL,
		apiKey:         apiKey,
		client:         httpclient.New(requestTimeout),
		confirmTimeout: confirmTimeout,
		pollInterval:   500 * time.Millisecond,
	}
}

type submitRequest struct {
	Wallet      string `json:"wallet"`
	AmountWei   string `json:"amount_wei,omitempty"`
	CarbonWei   string `json:"carbon_wei,omitempty"`
	MetadataURI string `json:"metadata_uri,omitempty"`
	ProofID     string `json:"proof_id,omitempty"`
}

type txStatus struct {
	TxHash      string `json:"tx_hash"`
	Status      string `json:"status"` // pending, confirmed, failed
	BlockNumber uint64 `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`
	TokenID     int64  `json:"token_id"`
	Error       *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *HTTPClient) MintRewardTokens(ctx context.Context, wallet string, amountWei *big.Int) (*TxReceipt, error) {
	return c.submitAndConfirm(ctx, OpRewardToken, "/v1/token/mint", submitRequest{
		Wallet:    wallet,
		AmountWei: amountWei.String(),
	})
}

func (c *HTTPClient) MintCertificate(ctx context.Context, wallet, metadataURI string, carbonWei *big.Int) (*TxReceipt, error) {
	return c.submitAndConfirm(ctx, OpCertificateNFT, "/v1/certificate/mint", submitRequest{
		Wallet:      wallet,
		MetadataURI: metadataURI,
		CarbonWei:   carbonWei.String(),
	})
}

func (c *HTTPClient) RegisterProof(ctx context.Context, proofID, wallet string, carbonWei *big.Int, metadataURI string) (*TxReceipt, error) {
	return c.submitAndConfirm(ctx, OpProofRegistry, "/v1/proof/register", submitRequest{
		Wallet:      wallet,
		ProofID:     proofID,
		CarbonWei:   carbonWei.String(),
		MetadataURI: metadataURI,
	})
}

func (c *HTTPClient) submitAndConfirm(ctx context.Context, op, path string, req submitRequest) (*TxReceipt, error) {
	status, err := c.submit(ctx, op, path, req)
	if err != nil {
		return nil, err
	}

	if status.Status == "confirmed" {
		return receiptFrom(status), nil
	}
	return c.waitForConfirmation(ctx, op, status.TxHash)
}

func (c *HTTPClient) submit(ctx context.Context, op, path string, req submitRequest) (*txStatus, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Op: op, Message: fmt.Sprintf("encoding request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Op: op, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if httpclient.IsTimeout(err) {
			return nil, &Error{Kind: KindTimeout, Op: op, Message: err.Error()}
		}
		return nil, &Error{Kind: KindUnknown, Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Op: op, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, c.errorFromResponse(op, resp.StatusCode, payload)
	}

	var status txStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return nil, &Error{Kind: KindUnknown, Op: op, Message: fmt.Sprintf("decoding response: %v", err)}
	}
	if status.TxHash == "" {
		return nil, &Error{Kind: KindUnknown, Op: op, Message: "relay returned no transaction hash"}
	}

	return &status, nil
}

func (c *HTTPClient) waitForConfirmation(ctx context.Context, op, txHash string) (*TxReceipt, error) {
	confirmCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	var receipt *TxReceipt
	var terminal error

	err := httpclient.Poll(confirmCtx, 256, c.pollInterval, func() error {
		status, err := c.getTx(confirmCtx, op, txHash)
		if err != nil {
			return err
		}
		switch status.Status {
		case "confirmed":
			receipt = receiptFrom(status)
			return nil
		case "failed":
			kind := KindReverted
			message := "transaction reverted"
			if status.Error != nil {
				kind = ParseKind(status.Error.Kind)
				message = status.Error.Message
			}
			terminal = &Error{Kind: kind, Op: op, Message: message}
			return nil
		default:
			return errTxPending
		}
	})

	if terminal != nil {
		return nil, terminal
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errTxPending) {
			logger.Log.WithFields(map[string]interface{}{
				"operation": op,
				"tx_hash":   txHash,
			}).Warn("gave up waiting for transaction confirmation")
			return nil, &Error{Kind: KindTimeout, Op: op, Message: fmt.Sprintf("timeout waiting for confirmation of %s", txHash)}
		}
		return nil, &Error{Kind: Classify(err), Op: op, Message: err.Error()}
	}

	return receipt, nil
}

func (c *HTTPClient) getTx(ctx context.Context, op, txHash string) (*txStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/tx/"+txHash, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse(op, resp.StatusCode, payload)
	}

	var status txStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *HTTPClient) errorFromResponse(op string, statusCode int, payload []byte) error {
	var body struct {
		Error *struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Error != nil {
		return &Error{Kind: ParseKind(body.Error.Kind), Op: op, Message: body.Error.Message}
	}

	if statusCode == http.StatusTooManyRequests {
		return &Error{Kind: KindRateLimited, Op: op, Message: "relay rate limit exceeded"}
	}
	return &Error{Kind: KindUnknown, Op: op, Message: fmt.Sprintf("relay returned status %d", statusCode)}
}

func receiptFrom(status *txStatus) *TxReceipt {
	return &TxReceipt{
		TxHash:      status.TxHash,
		BlockNumber: status.BlockNumber,
		GasUsed:     status.GasUsed,
		TokenID:     status.TokenID,
	}
}

// ExplorerTxURL builds the block-explorer link for a transaction.
func ExplorerTxURL(baseURL, txHash string) string {
	if baseURL == "" || txHash == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", baseURL, txHash)
}

// ExplorerAddressURL builds the block-explorer link for a wallet address.
func ExplorerAddressURL(baseURL, address string) string {
	if baseURL == "" || address == "" {
		return ""
	}
	return fmt.Sprintf("%s/address/%s", baseURL, address)
}
