package minting

import (
	"context"

	"github.com/ecochain/platform/pkg/common/logger"
	"github.com/ecochain/platform/pkg/ledger"
	"github.com/ecochain/platform/pkg/observability/metrics"
)

// Orchestrator runs the three ledger operations for a scored upload. The
// operations are independent: a failure is captured in its outcome and never
// prevents the remaining operations from being attempted. The orchestrator
// itself never retries; retry_recommended is advisory output.
type Orchestrator struct {
	client          ledger.Client
	explorerBaseURL string
}

func NewOrchestrator(client ledger.Client, explorerBaseURL string) *Orchestrator {
	return &Orchestrator{client: client, explorerBaseURL: explorerBaseURL}
}

// Execute runs the mint plan and returns the aggregated summary. Operations
// already confirmed in req.Prior are reused instead of re-submitted, making a
// repeated mint for the same upload a no-op.
func (o *Orchestrator) Execute(ctx context.Context, req Request) *Summary {
	if req.Prior != nil && req.Prior.TotalSuccess {
		logger.Log.WithField("upload_id", req.UploadID).Info("mint already completed, reusing recorded outcomes")
		return req.Prior
	}

	amountWei := toWei(req.FinalCredits)
	carbonWei := toWei(flooredCarbon(req.CarbonFootprint))
	proofID := "proof_" + req.UploadID

	summary := &Summary{
		TokenAmount: req.FinalCredits,
		AmountWei:   amountWei.String(),
	}

	ops := []struct {
		name string
		run  func(context.Context) (*ledger.TxReceipt, error)
	}{
		{ledger.OpRewardToken, func(ctx context.Context) (*ledger.TxReceipt, error) {
			return o.client.MintRewardTokens(ctx, req.Wallet, amountWei)
		}},
		{ledger.OpCertificateNFT, func(ctx context.Context) (*ledger.TxReceipt, error) {
			return o.client.MintCertificate(ctx, req.Wallet, req.MetadataURI, carbonWei)
		}},
		{ledger.OpProofRegistry, func(ctx context.Context) (*ledger.TxReceipt, error) {
			return o.client.RegisterProof(ctx, proofID, req.Wallet, carbonWei, req.MetadataURI)
		}},
	}

	allSucceeded := true
	for _, op := range ops {
		outcome := o.runOperation(ctx, req, op.name, proofID, op.run)
		summary.Outcomes = append(summary.Outcomes, outcome)
		if !outcome.Success {
			allSucceeded = false
		}
	}

	summary.TotalSuccess = allSucceeded
	return summary
}

func (o *Orchestrator) runOperation(ctx context.Context, req Request, name, proofID string, run func(context.Context) (*ledger.TxReceipt, error)) Outcome {
	if prior := req.Prior.Outcome(name); prior != nil && prior.Success && prior.TxHash != "" {
		logger.Log.WithFields(map[string]interface{}{
			"upload_id": req.UploadID,
			"operation": name,
			"tx_hash":   prior.TxHash,
		}).Info("operation already confirmed, skipping")
		reused := *prior
		reused.Reused = true
		return reused
	}

	metrics.IncMintOperation()
	receipt, err := run(ctx)
	if err != nil {
		metrics.IncMintOperationFailed()
		kind := ledger.Classify(err)
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"upload_id":  req.UploadID,
			"operation":  name,
			"error_kind": string(kind),
		}).Error("ledger operation failed")

		return Outcome{
			Operation:        name,
			Success:          false,
			Error:            err.Error(),
			ErrorKind:        kind,
			RetryRecommended: kind.Retryable(),
		}
	}

	outcome := Outcome{
		Operation:   name,
		Success:     true,
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
		GasUsed:     receipt.GasUsed,
		ExplorerURL: ledger.ExplorerTxURL(o.explorerBaseURL, receipt.TxHash),
	}
	switch name {
	case ledger.OpCertificateNFT:
		outcome.TokenID = receipt.TokenID
	case ledger.OpProofRegistry:
		outcome.ProofID = proofID
	}

	logger.Log.WithFields(map[string]interface{}{
		"upload_id": req.UploadID,
		"operation": name,
		"tx_hash":   receipt.TxHash,
		"block":     receipt.BlockNumber,
	}).Info("ledger operation confirmed")

	return outcome
}
