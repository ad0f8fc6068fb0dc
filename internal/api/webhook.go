package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/flockops/safeguard/internal/engine"
	"github.com/flockops/safeguard/internal/ministrysafe"
)

// maxWebhookBody caps delivery payload size.
const maxWebhookBody = 1 << 20

// CheckEnricher backfills payload fields the webhook delivery omits. The
// vendor's check deliveries do not always carry the secondary verification
// flag, so the full record is fetched when it is absent.
type CheckEnricher interface {
	GetBackgroundCheck(ctx context.Context, id int64) (*ministrysafe.BackgroundCheck, error)
}

// webhookPayload is the union of the vendor's two delivery shapes. A non-null
// certificate_url marks a training completion; everything else is a
// background check observation.
type webhookPayload struct {
	ID         ministrysafe.FlexID `json:"id"`
	UserID     ministrysafe.FlexID `json:"user_id"`
	ExternalID string              `json:"external_id"`

	// training shape
	CertificateURL *string            `json:"certificate_url"`
	SurveyCode     string             `json:"survey_code"`
	Score          *int               `json:"score"`
	CreatedAt      string             `json:"created_at"`
	Participant    *ministrysafe.User `json:"participant"`

	// check shape
	UserExternalID string `json:"user_external_id"`
	OrderDate      string `json:"order_date"`
	CompleteDate   string `json:"complete_date"`
	Status         string `json:"status"`
	ResultsURL     string `json:"results_url"`
	Flagged        *bool  `json:"tazwork_flagged"`
	Level          *int   `json:"level"`
	PackageCode    string `json:"custom_background_check_package_code"`
}

// handleWebhook receives one vendor delivery. Reconciliation errors map to
// 4xx/5xx so the vendor's retry machinery redelivers only what can still
// succeed.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.cfg.WebhookSecret != "" {
		got := r.Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.WebhookSecret)) != 1 {
			respondError(w, http.StatusUnauthorized, "invalid webhook secret")
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "reading request body")
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "malformed delivery payload")
		return
	}

	deliveryID := uuid.NewString()
	logger := s.logger.WithDelivery(deliveryID)

	if payload.CertificateURL != nil {
		logger.Info("training delivery received",
			"vendor_id", payload.ID.Int64(),
			"survey_code", payload.SurveyCode)
		err = s.applyTrainingDelivery(r.Context(), payload)
	} else {
		logger.Info("check delivery received",
			"vendor_id", payload.ID.Int64(),
			"status", payload.Status)
		err = s.applyCheckDelivery(r.Context(), payload)
	}
	if err != nil {
		logger.Warn("delivery reconciliation failed", "error", err)
		s.respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"delivery_id": deliveryID})
}

func (s *Server) applyCheckDelivery(ctx context.Context, p webhookPayload) error {
	flagged := p.Flagged
	resultsURL := p.ResultsURL
	if flagged == nil && s.enricher != nil && p.ID.Int64() != 0 {
		bc, err := s.enricher.GetBackgroundCheck(ctx, p.ID.Int64())
		if err == nil && bc != nil {
			flagged = bc.Flagged
			if resultsURL == "" {
				resultsURL = bc.ResultsURL
			}
		}
	}

	externalRef := p.ExternalID
	if externalRef == "" {
		externalRef = p.UserExternalID
	}

	return s.reconciler.ApplyCheckUpdate(ctx, engine.CheckUpdate{
		RequestID:        strconv.FormatInt(p.ID.Int64(), 10),
		ExternalRef:      externalRef,
		ResultsURL:       resultsURL,
		VendorUserID:     p.UserID.Int64(),
		Level:            p.Level,
		PackageCode:      p.PackageCode,
		Status:           p.Status,
		CompletedAt:      ministrysafe.ParseTime(p.CompleteDate),
		OrderedAt:        ministrysafe.ParseTime(p.OrderDate),
		Flagged:          flagged,
		AutoCreateTypeID: s.cfg.CheckTypeID,
	})
}

func (s *Server) applyTrainingDelivery(ctx context.Context, p webhookPayload) error {
	externalRef := p.ExternalID
	vendorUserID := p.UserID.Int64()
	if p.Participant != nil {
		if externalRef == "" {
			externalRef = p.Participant.ExternalID
		}
		if vendorUserID == 0 {
			vendorUserID = p.Participant.ID.Int64()
		}
	}

	return s.reconciler.ApplyTrainingUpdate(ctx, engine.TrainingUpdate{
		ExternalRef:      externalRef,
		VendorUserID:     vendorUserID,
		Score:            p.Score,
		SurveyCode:       p.SurveyCode,
		CompletedAt:      ministrysafe.ParseTime(p.CompleteDate),
		CreatedAt:        ministrysafe.ParseTime(p.CreatedAt),
		AutoCreateTypeID: s.cfg.TrainingTypeID,
	})
}
