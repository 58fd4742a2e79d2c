package minting

import (
	"math/big"

	"github.com/ecochain/platform/pkg/ledger"
)

// Outcome records one ledger operation attempt.
type Outcome struct {
	Operation        string           `json:"operation"`
	Success          bool             `json:"success"`
	TxHash           string           `json:"tx_hash,omitempty"`
	BlockNumber      uint64           `json:"block_number,omitempty"`
	GasUsed          uint64           `json:"gas_used,omitempty"`
	TokenID          int64            `json:"token_id,omitempty"`
	ProofID          string           `json:"proof_id,omitempty"`
	ExplorerURL      string           `json:"explorer_url,omitempty"`
	Error            string           `json:"error,omitempty"`
	ErrorKind        ledger.ErrorKind `json:"error_kind,omitempty"`
	RetryRecommended bool             `json:"retry_recommended"`
	Reused           bool             `json:"reused,omitempty"` // carried over from an earlier attempt
}

// Summary aggregates the three operation outcomes for one upload.
type Summary struct {
	Outcomes     []Outcome `json:"outcomes"`
	TotalSuccess bool      `json:"total_success"`
	TokenAmount  float64   `json:"token_amount"`
	AmountWei    string    `json:"amount_wei"`
}

// Outcome returns the recorded outcome for an operation, or nil.
func (s *Summary) Outcome(operation string) *Outcome {
	if s == nil {
		return nil
	}
	for i := range s.Outcomes {
		if s.Outcomes[i].Operation == operation {
			return &s.Outcomes[i]
		}
	}
	return nil
}

// Request is the typed mint command: everything the orchestrator needs to
// run the three ledger operations for one scored upload. Prior carries the
// outcomes of an earlier attempt so already-confirmed operations are not
// re-submitted.
type Request struct {
	UploadID        string
	Wallet          string
	MetadataURI     string
	CarbonFootprint float64
	FinalCredits    float64
	Prior           *Summary
}

var weiPerToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// toWei scales a display amount to the ledger's smallest unit, truncating
// toward zero.
func toWei(amount float64) *big.Int {
	f := new(big.Float).SetFloat64(amount)
	f.Mul(f, new(big.Float).SetInt(weiPerToken))
	wei, _ := f.Int(nil)
	return wei
}

// flooredCarbon enforces the minimum carbon amount accepted by downstream
// contract validation.
func flooredCarbon(carbon float64) float64 {
	if carbon < 1.0 {
		return 1.0
	}
	return carbon
}
