package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	uploadsReceived      atomic.Int64
	uploadsCompleted     atomic.Int64
	uploadsFailed        atomic.Int64
	validationRejected   atomic.Int64
	storageFallbacks     atomic.Int64
	scoringMockFallbacks atomic.Int64
	mintOperations       atomic.Int64
	mintOperationFailed  atomic.Int64
	persistenceFailures  atomic.Int64
	dedupeHits           atomic.Int64
	eventPublishFailures atomic.Int64
	sessionBackups       atomic.Int64
	sessionRecoveries    atomic.Int64
)

func IncUploadsReceived()      { uploadsReceived.Add(1) }
func IncUploadsCompleted()     { uploadsCompleted.Add(1) }
func IncUploadsFailed()        { uploadsFailed.Add(1) }
func IncValidationRejected()   { validationRejected.Add(1) }
func IncStorageFallback()      { storageFallbacks.Add(1) }
func IncScoringMockFallback()  { scoringMockFallbacks.Add(1) }
func IncMintOperation()        { mintOperations.Add(1) }
func IncMintOperationFailed()  { mintOperationFailed.Add(1) }
func IncPersistenceFailure()   { persistenceFailures.Add(1) }
func IncDedupeHit()            { dedupeHits.Add(1) }
func IncEventPublishFailure()  { eventPublishFailures.Add(1) }
func IncSessionBackup()        { sessionBackups.Add(1) }
func IncSessionRecovery()      { sessionRecoveries.Add(1) }

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP ecochain_pipeline_uploads_received_total Upload requests accepted past validation.\n")
	fmt.Fprintf(w, "# TYPE ecochain_pipeline_uploads_received_total counter\n")
	fmt.Fprintf(w, "ecochain_pipeline_uploads_received_total %d\n", uploadsReceived.Load())

	fmt.Fprintf(w, "# HELP ecochain_pipeline_uploads_completed_total Upload sessions that reached the completed state.\n")
	fmt.Fprintf(w, "# TYPE ecochain_pipeline_uploads_completed_total counter\n")
	fmt.Fprintf(w, "ecochain_pipeline_uploads_completed_total %d\n", uploadsCompleted.Load())

	fmt.Fprintf(w, "# HELP ecochain_pipeline_uploads_failed_total Upload sessions that reached the failed state.\n")
	fmt.Fprintf(w, "# TYPE ecochain_pipeline_uploads_failed_total counter\n")
	fmt.Fprintf(w, "ecochain_pipeline_uploads_failed_total %d\n", uploadsFailed.Load())

	fmt.Fprintf(w, "# HELP ecochain_pipeline_validation_rejected_total Upload requests rejected at intake validation.\n")
	fmt.Fprintf(w, "# TYPE ecochain_pipeline_validation_rejected_total counter\n")
	fmt.Fprintf(w, "ecochain_pipeline_validation_rejected_total %d\n", validationRejected.Load())

	fmt.Fprintf(w, "# HELP ecochain_pipeline_storage_fallback_total Uploads that fell back to a locally derived content address.\n")
	fmt.Fprintf(w, "# TYPE ecochain_pipeline_storage_fallback_total counter\n")
	fmt.Fprintf(w, "ecochain_pipeline_storage_fallback_total %d\n", storageFallbacks.Load())

	fmt.Fprintf(w, "# HELP ecochain_pipeline_scoring_mock_fallback_total Uploads scored from the canned metric table.\n")
	fmt.Fprintf(w, "# TYPE ecochain_pipeline_scoring_mock_fallback_total counter\n")
	fmt.Fprintf(w, "ecochain_pipeline_scoring_mock_fallback_total %d\n", scoringMockFallbacks.Load())

	fmt.Fprintf(w, "# HELP ecochain_ledger_mint_operations_total Ledger operations attempted by the mint orchestrator.\n")
	fmt.Fprintf(w, "# TYPE ecochain_ledger_mint_operations_total counter\n")
	fmt.Fprintf(w, "ecochain_ledger_mint_operations_total %d\n", mintOperations.Load())

	fmt.Fprintf(w, "# HELP ecochain_ledger_mint_operation_failures_total Ledger operations that returned an error.\n")
	fmt.Fprintf(w, "# TYPE ecochain_ledger_mint_operation_failures_total counter\n")
	fmt.Fprintf(w, "ecochain_ledger_mint_operation_failures_total %d\n", mintOperationFailed.Load())

	fmt.Fprintf(w, "# HELP ecochain_pipeline_persistence_failures_total Session writes that failed; durability was lost until the next successful save.\n")
	fmt.Fprintf(w, "# TYPE ecochain_pipeline_persistence_failures_total counter\n")
	fmt.Fprintf(w, "ecochain_pipeline_persistence_failures_total %d\n", persistenceFailures.Load())

	fmt.Fprintf(w, "# HELP ecochain_pipeline_dedupe_hits_total Upload requests short-circuited as duplicates.\n")
	fmt.Fprintf(w, "# TYPE ecochain_pipeline_dedupe_hits_total counter\n")
	fmt.Fprintf(w, "ecochain_pipeline_dedupe_hits_total %d\n", dedupeHits.Load())

	fmt.Fprintf(w, "# HELP ecochain_pipeline_event_publish_failures_total Pipeline events that could not be written to the bus.\n")
	fmt.Fprintf(w, "# TYPE ecochain_pipeline_event_publish_failures_total counter\n")
	fmt.Fprintf(w, "ecochain_pipeline_event_publish_failures_total %d\n", eventPublishFailures.Load())

	fmt.Fprintf(w, "# HELP ecochain_sessionstore_backups_total Session document backups taken.\n")
	fmt.Fprintf(w, "# TYPE ecochain_sessionstore_backups_total counter\n")
	fmt.Fprintf(w, "ecochain_sessionstore_backups_total %d\n", sessionBackups.Load())

	fmt.Fprintf(w, "# HELP ecochain_sessionstore_recoveries_total Session document restores from a backup after corruption.\n")
	fmt.Fprintf(w, "# TYPE ecochain_sessionstore_recoveries_total counter\n")
	fmt.Fprintf(w, "ecochain_sessionstore_recoveries_total %d\n", sessionRecoveries.Load())
}
