package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ecochain/platform/pkg/common/logger"
	"github.com/ecochain/platform/pkg/ledger"
	"github.com/ecochain/platform/pkg/minting"
	"github.com/ecochain/platform/pkg/scoring"
)

func init() {
	logger.Init()
}

func testSession(wallet string) *Session {
	return NewSession(Request{
		Filename:    "report.json",
		ContentType: "application/json",
		UploadType:  "carbon_footprint",
		UserWallet:  wallet,
		Content:     []byte(`{"carbon_footprint": 1}`),
	})
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	sess := testSession("0xaaa")
	sess.CID = "QmTest"
	sess.GatewayURL = "https://gateway.lighthouse.storage/ipfs/QmTest"
	sess.Scoring = &scoring.Result{
		Metrics: scoring.Metrics{
			CarbonFootprint:   200,
			EnergyConsumption: 3000,
			WasteReductionPct: 20,
			RenewablePct:      90,
		},
		DocumentCategory: "carbon_footprint",
		FinalCredits:     96,
		ImpactScore:      100,
		ShouldMint:       true,
		Reasoning:        "rule-based analysis",
		MetricsSource:    scoring.SourceDocument,
	}
	sess.Mint = &minting.Summary{
		TotalSuccess: true,
		TokenAmount:  96,
		AmountWei:    "96000000000000000000",
		Outcomes: []minting.Outcome{
			{Operation: ledger.OpRewardToken, Success: true, TxHash: "0x1"},
		},
	}

	if err := store.Put(context.Background(), sess); err != nil {
		t.Fatalf("put: %v", err)
	}

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	loaded, err := reopened.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get after reload: %v", err)
	}
	if !reflect.DeepEqual(sess, loaded) {
		t.Errorf("round trip mismatch:\nsaved:  %+v\nloaded: %+v", sess, loaded)
	}
}

func TestFileStoreGetReturnsCopy(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	sess := testSession("0xaaa")
	if err := store.Put(context.Background(), sess); err != nil {
		t.Fatalf("put: %v", err)
	}

	first, _ := store.Get(context.Background(), sess.ID)
	first.Status = "mutated"

	second, _ := store.Get(context.Background(), sess.ID)
	if second.Status != StatusProcessing {
		t.Errorf("mutating a returned session leaked into the store: %s", second.Status)
	}
}

func TestFileStoreCrashLeavesDocumentIntact(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	sess := testSession("0xaaa")
	if err := store.Put(context.Background(), sess); err != nil {
		t.Fatalf("put: %v", err)
	}

	// A crash between temp-file write and rename leaves an orphan temp file
	// behind; the main document must still load cleanly.
	orphan := filepath.Join(dir, "sessions-crashed.tmp")
	if err := os.WriteFile(orphan, []byte("{ half written"), 0o644); err != nil {
		t.Fatalf("writing orphan temp file: %v", err)
	}

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	if _, err := reopened.Get(context.Background(), sess.ID); err != nil {
		t.Fatalf("session lost after simulated crash: %v", err)
	}
}

func TestFileStoreRecoversFromBackup(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	sess := testSession("0xaaa")
	if err := store.Put(context.Background(), sess); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Backup(); err != nil {
		t.Fatalf("backup: %v", err)
	}

	// Corrupt the main document; reopening must restore from the backup.
	if err := os.WriteFile(filepath.Join(dir, sessionsFile), []byte("{ not json"), 0o644); err != nil {
		t.Fatalf("corrupting document: %v", err)
	}

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	recovered, err := reopened.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("session not recovered: %v", err)
	}
	if recovered.UserWallet != "0xaaa" {
		t.Errorf("recovered wrong session: %+v", recovered)
	}

	// Recovery rewrites the main document, so a third open needs no backup.
	payload, err := os.ReadFile(filepath.Join(dir, sessionsFile))
	if err != nil {
		t.Fatalf("reading restored document: %v", err)
	}
	if len(payload) == 0 || payload[0] != '{' {
		t.Error("main document was not rewritten after recovery")
	}
}

func TestFileStorePicksLatestBackup(t *testing.T) {
	dir := t.TempDir()

	older := `{"old-id": {"upload_id": "old-id", "user_wallet": "0xold", "status": "completed", "created_at": "2025-01-01T00:00:00Z", "updated_at": "2025-01-01T00:00:00Z"}}`
	newer := `{"new-id": {"upload_id": "new-id", "user_wallet": "0xnew", "status": "completed", "created_at": "2025-02-01T00:00:00Z", "updated_at": "2025-02-01T00:00:00Z"}}`

	writeFixture := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	writeFixture(backupPrefix+"20250101_000000.json", older)
	writeFixture(backupPrefix+"20250201_000000.json", newer)
	writeFixture(sessionsFile, "corrupt")

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := store.Get(context.Background(), "new-id"); err != nil {
		t.Errorf("latest backup not restored: %v", err)
	}
	if _, err := store.Get(context.Background(), "old-id"); !errors.Is(err, ErrNotFound) {
		t.Error("older backup should not have been restored")
	}
}

func TestFileStoreCorruptWithoutBackupFails(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, sessionsFile), []byte("corrupt"), 0o644); err != nil {
		t.Fatalf("writing corrupt document: %v", err)
	}

	if _, err := NewFileStore(dir); err == nil {
		t.Fatal("expected error when document is corrupt and no backup exists")
	}
}

func TestFileStoreDelete(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	sess := testSession("0xaaa")
	if err := store.Put(context.Background(), sess); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := store.Delete(context.Background(), sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(context.Background(), sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(context.Background(), sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete should return ErrNotFound, got %v", err)
	}
}

func TestFileStoreListByWallet(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	first := testSession("0xaaa")
	first.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	second := testSession("0xaaa")
	second.CreatedAt = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	other := testSession("0xbbb")

	for _, sess := range []*Session{first, second, other} {
		if err := store.Put(context.Background(), sess); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	sessions, err := store.ListByWallet(context.Background(), "0xaaa")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != second.ID {
		t.Error("sessions not ordered newest first")
	}
}
