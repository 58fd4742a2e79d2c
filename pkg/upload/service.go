package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecochain/platform/pkg/common/kafka"
	"github.com/ecochain/platform/pkg/common/logger"
	"github.com/ecochain/platform/pkg/common/models"
	"github.com/ecochain/platform/pkg/contentstore"
	"github.com/ecochain/platform/pkg/dedupe"
	"github.com/ecochain/platform/pkg/minting"
	"github.com/ecochain/platform/pkg/observability/metrics"
	"github.com/ecochain/platform/pkg/scoring"
)

var errNotMintable = errors.New("upload is not eligible for minting")

// Service runs the upload pipeline: validate, store content, score, mint,
// and persist the session after each stage. Storage and scoring failures are
// recovered locally; persistence failures are logged and counted but never
// abort the pipeline.
type Service struct {
	validator  *Validator
	repo       Repository
	store      contentstore.Store
	gateway    string
	engine     *scoring.Engine
	dispatcher *minting.Dispatcher
	producer   *kafka.Producer
	dedupe     *dedupe.Index
}

func NewService(validator *Validator, repo Repository, store contentstore.Store, gateway string, engine *scoring.Engine, dispatcher *minting.Dispatcher, producer *kafka.Producer, dedupeIndex *dedupe.Index) *Service {
	return &Service{
		validator:  validator,
		repo:       repo,
		store:      store,
		gateway:    gateway,
		engine:     engine,
		dispatcher: dispatcher,
		producer:   producer,
		dedupe:     dedupeIndex,
	}
}

// Process executes one full pipeline run and returns the session in its
// final state. The caller should hand in a context detached from the HTTP
// request, since a client disconnect must not abort in-flight stages.
func (s *Service) Process(ctx context.Context, req Request) (sess *Session, err error) {
	if err := s.validator.Validate(req); err != nil {
		metrics.IncValidationRejected()
		return nil, err
	}

	sess = NewSession(req)

	if s.dedupe != nil {
		if existingID, ok := s.dedupe.Lookup(ctx, sess.UserWallet, sess.ContentHash); ok {
			if existing, getErr := s.repo.Get(ctx, existingID); getErr == nil {
				metrics.IncDedupeHit()
				logger.Log.WithFields(map[string]interface{}{
					"upload_id":   existing.ID,
					"user_wallet": existing.UserWallet,
				}).Info("duplicate content within dedupe window, returning existing session")
				existing.Duplicate = true
				return existing, nil
			}
		}
	}

	if err := s.repo.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating upload session: %w", err)
	}
	metrics.IncUploadsReceived()
	s.publishEvent(ctx, models.EventUploadReceived, sess)

	defer func() {
		if r := recover(); r != nil {
			cause := fmt.Errorf("upload pipeline panic: %v", r)
			logger.Log.WithField("upload_id", sess.ID).Error(cause.Error())
			s.fail(ctx, sess, cause)
			err = cause
		}
	}()

	s.storeContent(ctx, sess, req)
	s.persist(ctx, sess)

	result := s.engine.ScoreDocument(req.Content, req.ContentType, sess.UploadType)
	if result.MetricsSource == scoring.SourceMock {
		metrics.IncScoringMockFallback()
	}
	sess.Scoring = &result
	s.persist(ctx, sess)

	if result.ShouldMint {
		summary, mintErr := s.submitMint(ctx, sess)
		if mintErr != nil {
			s.fail(ctx, sess, mintErr)
			return nil, mintErr
		}
		sess.Mint = summary
		s.persist(ctx, sess)
	}

	s.complete(ctx, sess)
	return sess, nil
}

// Status returns the current session snapshot.
func (s *Service) Status(ctx context.Context, id string) (*Session, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListByWallet(ctx context.Context, wallet string) ([]*Session, error) {
	return s.repo.ListByWallet(ctx, wallet)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if s.dedupe != nil {
		s.dedupe.Forget(ctx, sess.UserWallet, sess.ContentHash)
	}
	s.publishEvent(ctx, models.EventUploadDeleted, sess)
	return nil
}

// Remint re-invokes the mint plan for an existing session. Operations that
// already confirmed are reused, so a remint after full success is a no-op
// returning the recorded outcomes.
func (s *Service) Remint(ctx context.Context, id string) (*Session, error) {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Scoring == nil || !sess.Scoring.ShouldMint {
		return nil, ValidationError{reason: errNotMintable}
	}

	summary, err := s.submitMint(ctx, sess)
	if err != nil {
		return nil, err
	}
	sess.Mint = summary

	if sess.Status == StatusFailed && summary.TotalSuccess {
		s.complete(ctx, sess)
	} else {
		s.persist(ctx, sess)
	}
	return sess, nil
}

func (s *Service) submitMint(ctx context.Context, sess *Session) (*minting.Summary, error) {
	return s.dispatcher.Submit(ctx, minting.Request{
		UploadID:        sess.ID,
		Wallet:          sess.UserWallet,
		MetadataURI:     sess.GatewayURL,
		CarbonFootprint: sess.Scoring.CarbonFootprint,
		FinalCredits:    sess.Scoring.FinalCredits,
		Prior:           sess.Mint,
	})
}

// storeContent uploads the file and falls back to a deterministic content
// address when the store is unreachable. The pipeline always proceeds to
// scoring and minting regardless of storage-provider availability.
func (s *Service) storeContent(ctx context.Context, sess *Session, req Request) {
	obj, err := s.store.Upload(ctx, req.Content, req.Filename, req.ContentType)
	if err != nil {
		metrics.IncStorageFallback()
		logger.Log.WithError(err).WithField("upload_id", sess.ID).Warn("content store unavailable, using fallback address")
		obj = contentstore.FallbackObject(req.Content, s.gateway)
		sess.StorageFallback = true
	}
	sess.CID = obj.CID
	sess.GatewayURL = obj.GatewayURL
}

func (s *Service) complete(ctx context.Context, sess *Session) {
	now := time.Now().UTC()
	sess.Status = StatusCompleted
	sess.Error = ""
	sess.CompletedAt = &now
	s.persist(ctx, sess)

	metrics.IncUploadsCompleted()
	s.publishEvent(ctx, models.EventUploadCompleted, sess)
	if s.dedupe != nil {
		s.dedupe.Remember(ctx, sess.UserWallet, sess.ContentHash, sess.ID)
	}
}

func (s *Service) fail(ctx context.Context, sess *Session, cause error) {
	sess.Status = StatusFailed
	sess.Error = cause.Error()
	s.persist(ctx, sess)

	metrics.IncUploadsFailed()
	s.publishEvent(ctx, models.EventUploadFailed, sess)
}

// persist writes the session, logging and counting a failure instead of
// propagating it. The in-memory session stays authoritative until the next
// successful save.
func (s *Service) persist(ctx context.Context, sess *Session) {
	sess.UpdatedAt = time.Now().UTC()
	if err := s.repo.Put(ctx, sess); err != nil {
		metrics.IncPersistenceFailure()
		logger.Log.WithError(err).WithField("upload_id", sess.ID).Error("failed to persist session, continuing with in-memory state")
	}
}

func (s *Service) publishEvent(ctx context.Context, eventType string, sess *Session) {
	if s.producer == nil {
		return
	}

	payload := map[string]interface{}{
		"upload_id":   sess.ID,
		"user_wallet": sess.UserWallet,
		"upload_type": sess.UploadType,
		"status":      sess.Status,
		"filename":    sess.Filename,
	}
	if sess.Scoring != nil {
		payload["final_credits"] = sess.Scoring.FinalCredits
		payload["impact_score"] = sess.Scoring.ImpactScore
		payload["should_mint"] = sess.Scoring.ShouldMint
	}
	if sess.Mint != nil {
		payload["mint_total_success"] = sess.Mint.TotalSuccess
	}
	if sess.Error != "" {
		payload["error"] = sess.Error
	}

	if err := s.producer.PublishEvent(ctx, eventType, "upload-service", payload); err != nil {
		metrics.IncEventPublishFailure()
		logger.Log.WithError(err).WithField("upload_id", sess.ID).Warn("failed to publish upload event")
	}
}
