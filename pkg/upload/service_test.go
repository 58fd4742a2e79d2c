package upload

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/ecochain/platform/pkg/contentstore"
	"github.com/ecochain/platform/pkg/ledger"
	"github.com/ecochain/platform/pkg/minting"
	"github.com/ecochain/platform/pkg/scoring"
)

type fakeStore struct {
	fail        bool
	gotFilename string
}

func (f *fakeStore) Upload(ctx context.Context, content []byte, filename, contentType string) (*contentstore.StoredObject, error) {
	f.gotFilename = filename
	if f.fail {
		return nil, errors.New("lighthouse unreachable")
	}
	return &contentstore.StoredObject{
		CID:        "QmLive",
		GatewayURL: "https://gateway.lighthouse.storage/ipfs/QmLive",
		Pinned:     true,
	}, nil
}

type fakeLedger struct {
	mu           sync.Mutex
	calls        []string
	failOps      map[string]error
	lastTokenWei *big.Int
	lastURI      string
}

func (f *fakeLedger) run(op string) error {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
	if f.failOps == nil {
		return nil
	}
	return f.failOps[op]
}

func (f *fakeLedger) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeLedger) MintRewardTokens(ctx context.Context, wallet string, amountWei *big.Int) (*ledger.TxReceipt, error) {
	if err := f.run(ledger.OpRewardToken); err != nil {
		return nil, err
	}
	f.lastTokenWei = amountWei
	return &ledger.TxReceipt{TxHash: "0xtoken", BlockNumber: 1}, nil
}

func (f *fakeLedger) MintCertificate(ctx context.Context, wallet, metadataURI string, carbonWei *big.Int) (*ledger.TxReceipt, error) {
	if err := f.run(ledger.OpCertificateNFT); err != nil {
		return nil, err
	}
	f.lastURI = metadataURI
	return &ledger.TxReceipt{TxHash: "0xcert", BlockNumber: 2, TokenID: 9}, nil
}

func (f *fakeLedger) RegisterProof(ctx context.Context, proofID, wallet string, carbonWei *big.Int, metadataURI string) (*ledger.TxReceipt, error) {
	if err := f.run(ledger.OpProofRegistry); err != nil {
		return nil, err
	}
	return &ledger.TxReceipt{TxHash: "0xproof", BlockNumber: 3}, nil
}

func newTestService(t *testing.T, store contentstore.Store, ldg ledger.Client) (*Service, *FileStore) {
	t.Helper()

	repo, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	dispatcher := minting.NewDispatcher(minting.NewOrchestrator(ldg, "https://sepolia.blockscout.com"), 4)
	t.Cleanup(func() { dispatcher.Stop(context.Background()) })

	svc := NewService(NewValidator(), repo, store, "https://gateway.lighthouse.storage", scoring.NewEngine(scoring.DefaultRules()), dispatcher, nil, nil)
	return svc, repo
}

func exampleRequest() Request {
	return Request{
		Filename:    "report.json",
		ContentType: "application/json",
		UploadType:  "carbon_footprint",
		UserWallet:  "0x1111111111111111111111111111111111111111",
		Content:     []byte(`{"carbon_footprint": 200, "energy_consumption": 3000, "waste_reduction": 20, "renewable_energy_percentage": 90}`),
	}
}

func TestProcessHappyPath(t *testing.T) {
	ldg := &fakeLedger{}
	svc, repo := newTestService(t, &fakeStore{}, ldg)

	sess, err := svc.Process(context.Background(), exampleRequest())
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if _, err := uuid.Parse(sess.ID); err != nil {
		t.Errorf("upload id %q is not a UUID: %v", sess.ID, err)
	}
	if sess.Status != StatusCompleted || sess.CompletedAt == nil {
		t.Fatalf("expected completed session, got %+v", sess)
	}
	if sess.CID != "QmLive" || sess.StorageFallback {
		t.Errorf("unexpected storage outcome: cid=%s fallback=%v", sess.CID, sess.StorageFallback)
	}

	if sess.Scoring == nil {
		t.Fatal("scoring result missing")
	}
	if sess.Scoring.FinalCredits != 96 || sess.Scoring.ImpactScore != 100 || !sess.Scoring.ShouldMint {
		t.Errorf("unexpected scoring: %+v", sess.Scoring)
	}
	if sess.Scoring.MetricsSource != scoring.SourceDocument {
		t.Errorf("metrics source = %s, want document", sess.Scoring.MetricsSource)
	}

	if sess.Mint == nil || !sess.Mint.TotalSuccess {
		t.Fatalf("expected successful mint, got %+v", sess.Mint)
	}
	if ldg.lastTokenWei.String() != "96000000000000000000" {
		t.Errorf("token amount wei = %s", ldg.lastTokenWei)
	}
	if ldg.lastURI != sess.GatewayURL {
		t.Errorf("nft metadata uri = %q, want gateway url %q", ldg.lastURI, sess.GatewayURL)
	}

	persisted, err := repo.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("persisted session missing: %v", err)
	}
	if persisted.Status != StatusCompleted || persisted.Mint == nil {
		t.Errorf("persisted session out of date: %+v", persisted)
	}
}

func TestProcessStorageFallback(t *testing.T) {
	req := exampleRequest()
	svc, _ := newTestService(t, &fakeStore{fail: true}, &fakeLedger{})

	sess, err := svc.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if !sess.StorageFallback {
		t.Fatal("expected fallback address to be used")
	}
	if want := contentstore.FallbackAddress(req.Content); sess.CID != want {
		t.Errorf("cid = %s, want deterministic fallback %s", sess.CID, want)
	}
	if sess.Status != StatusCompleted {
		t.Errorf("pipeline should complete despite storage outage, got %s", sess.Status)
	}
	if sess.Mint == nil || !sess.Mint.TotalSuccess {
		t.Error("minting should proceed with the fallback address")
	}
}

func TestProcessUnparseableDocumentUsesMockMetrics(t *testing.T) {
	svc, _ := newTestService(t, &fakeStore{}, &fakeLedger{})

	req := exampleRequest()
	req.Filename = "cert.png"
	req.ContentType = "image/png"
	req.UploadType = "certification"
	req.Content = []byte{0x89, 0x50, 0x4e, 0x47}

	sess, err := svc.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if sess.Scoring.MetricsSource != scoring.SourceMock {
		t.Fatalf("metrics source = %s, want mock", sess.Scoring.MetricsSource)
	}
	// Certification mock metrics score 100 base with the 1.5 multiplier.
	if sess.Scoring.FinalCredits != 150 {
		t.Errorf("final credits = %v, want 150", sess.Scoring.FinalCredits)
	}
	if sess.Status != StatusCompleted {
		t.Errorf("status = %s", sess.Status)
	}
}

func TestProcessBelowThresholdSkipsMint(t *testing.T) {
	ldg := &fakeLedger{}
	svc, _ := newTestService(t, &fakeStore{}, ldg)

	req := exampleRequest()
	req.Content = []byte(`{"carbon_footprint": 0, "energy_consumption": 0, "waste_reduction": 0, "renewable_energy_percentage": 0}`)

	sess, err := svc.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if sess.Scoring.ShouldMint || sess.Scoring.FinalCredits != 0 {
		t.Fatalf("unexpected scoring: %+v", sess.Scoring)
	}
	if sess.Mint != nil {
		t.Error("no mint should be attempted below threshold")
	}
	if len(ldg.calls) != 0 {
		t.Errorf("unexpected ledger calls: %v", ldg.calls)
	}
	if sess.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", sess.Status)
	}
}

func TestProcessValidationErrorCreatesNoSession(t *testing.T) {
	svc, repo := newTestService(t, &fakeStore{}, &fakeLedger{})

	req := exampleRequest()
	req.ContentType = "application/zip"

	if _, err := svc.Process(context.Background(), req); !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	sessions, err := repo.ListByWallet(context.Background(), req.UserWallet)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("rejected upload must not create a session, found %d", len(sessions))
	}
}

func TestProcessMintFailureDoesNotFailPipeline(t *testing.T) {
	ldg := &fakeLedger{failOps: map[string]error{
		ledger.OpRewardToken: errors.New("replacement transaction underpriced"),
	}}
	svc, _ := newTestService(t, &fakeStore{}, ldg)

	sess, err := svc.Process(context.Background(), exampleRequest())
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if sess.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed despite mint failure", sess.Status)
	}
	if sess.Mint.TotalSuccess {
		t.Fatal("total_success should be false")
	}

	token := sess.Mint.Outcome(ledger.OpRewardToken)
	if token.Success || !token.RetryRecommended || token.ErrorKind != ledger.KindUnderpriced {
		t.Errorf("unexpected token outcome: %+v", token)
	}
	if nft := sess.Mint.Outcome(ledger.OpCertificateNFT); nft == nil || !nft.Success || nft.TxHash != "0xcert" {
		t.Errorf("nft mint should succeed independently: %+v", nft)
	}
	if proof := sess.Mint.Outcome(ledger.OpProofRegistry); proof == nil || !proof.Success {
		t.Errorf("proof registration should succeed independently: %+v", proof)
	}
}

func TestProcessMarksSessionFailedWhenDispatcherStopped(t *testing.T) {
	ldg := &fakeLedger{}
	repo, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	dispatcher := minting.NewDispatcher(minting.NewOrchestrator(ldg, ""), 2)
	if err := dispatcher.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	svc := NewService(NewValidator(), repo, &fakeStore{}, "https://gateway.lighthouse.storage", scoring.NewEngine(scoring.DefaultRules()), dispatcher, nil, nil)

	req := exampleRequest()
	if _, err := svc.Process(context.Background(), req); err == nil {
		t.Fatal("expected error when dispatcher is stopped")
	}

	sessions, err := repo.ListByWallet(context.Background(), req.UserWallet)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("expected one session, got %d (err %v)", len(sessions), err)
	}
	if sessions[0].Status != StatusFailed || sessions[0].Error == "" {
		t.Errorf("session should be marked failed: %+v", sessions[0])
	}
}

func TestRemintAfterFullSuccessIsNoOp(t *testing.T) {
	ldg := &fakeLedger{}
	svc, _ := newTestService(t, &fakeStore{}, ldg)

	sess, err := svc.Process(context.Background(), exampleRequest())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := len(ldg.calls); got != 3 {
		t.Fatalf("expected 3 ledger calls after first run, got %d", got)
	}

	reminted, err := svc.Remint(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("remint: %v", err)
	}
	if got := len(ldg.calls); got != 3 {
		t.Errorf("remint after full success must not resubmit, got %d calls", got)
	}
	if !reminted.Mint.TotalSuccess {
		t.Error("recorded outcomes should be returned unchanged")
	}
}

func TestRemintRetriesOnlyFailedOperations(t *testing.T) {
	ldg := &fakeLedger{failOps: map[string]error{
		ledger.OpRewardToken: errors.New("rpc timeout"),
	}}
	svc, _ := newTestService(t, &fakeStore{}, ldg)

	sess, err := svc.Process(context.Background(), exampleRequest())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if sess.Mint.TotalSuccess {
		t.Fatal("first run should have a failed token mint")
	}

	ldg.mu.Lock()
	ldg.failOps = nil
	ldg.mu.Unlock()

	reminted, err := svc.Remint(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("remint: %v", err)
	}

	if got := ldg.callCount(ledger.OpRewardToken); got != 2 {
		t.Errorf("token mint attempts = %d, want 2", got)
	}
	if got := ldg.callCount(ledger.OpCertificateNFT); got != 1 {
		t.Errorf("certificate mint attempts = %d, want 1 (reused)", got)
	}
	if !reminted.Mint.TotalSuccess {
		t.Errorf("remint should complete the plan: %+v", reminted.Mint)
	}
	if nft := reminted.Mint.Outcome(ledger.OpCertificateNFT); !nft.Reused {
		t.Error("confirmed nft outcome should be marked reused")
	}
}

func TestRemintRejectsNonMintableSession(t *testing.T) {
	svc, _ := newTestService(t, &fakeStore{}, &fakeLedger{})

	req := exampleRequest()
	req.Content = []byte(`{"carbon_footprint": 0, "energy_consumption": 0, "waste_reduction": 0, "renewable_energy_percentage": 0}`)

	sess, err := svc.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if _, err := svc.Remint(context.Background(), sess.ID); !IsValidationError(err) {
		t.Fatalf("expected validation error for non-mintable session, got %v", err)
	}
}
