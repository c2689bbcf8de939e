package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketpulse/internal/auth"
	"marketpulse/internal/model"
)

const (
	AdapterHeader   = "X-MP-Adapter"
	APIKeyHeader    = "X-MP-API-Key"
	SignatureHeader = "X-MP-Signature"

	adapterKey = "marketpulse.adapter"
)

// RequireAdapter admits requests signed by a registered adapter. The body is read for
// signature checking and restored for the next handler.
func RequireAdapter(adapters map[string]auth.Credential) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			reject(c, http.StatusBadRequest, "body_invalid", "invalid body")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		adapterID := c.GetHeader(AdapterHeader)
		cred, ok := adapters[adapterID]
		if !ok {
			reject(c, http.StatusUnauthorized, "adapter_unknown", auth.ErrUnknownAdapter.Error())
			return
		}
		if err := auth.Check(cred, c.GetHeader(APIKeyHeader), c.GetHeader(SignatureHeader), body); err != nil {
			reject(c, http.StatusUnauthorized, "adapter_unauthorized", err.Error())
			return
		}
		c.Set(adapterKey, adapterID)
		c.Next()
	}
}

// Publisher queues an accepted envelope.
type Publisher interface {
	Publish(ctx context.Context, key string, v any) error
}

// Ingest accepts pushes from source adapters and queues them on the raw topic.
type Ingest struct {
	adapters  map[string]auth.Credential
	publisher Publisher
	log       *zap.Logger
	now       func() time.Time
}

// NewIngest builds the ingest handlers. adapters maps adapter IDs to credentials.
func NewIngest(adapters map[string]auth.Credential, pub Publisher, log *zap.Logger) *Ingest {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingest{adapters: adapters, publisher: pub, log: log, now: time.Now}
}

// Register mounts the push routes. Connection pushes are how integrations are created,
// updated and removed (connected=false) for a campaign.
func (h *Ingest) Register(r gin.IRoutes) {
	guard := RequireAdapter(h.adapters)
	r.POST("/v1/sources/:source/metrics", guard, h.handle(model.EnvelopeMetrics))
	r.POST("/v1/sources/:source/revenue", guard, h.handle(model.EnvelopeRevenue))
	r.POST("/v1/sources/:source/connection", guard, h.handle(model.EnvelopeConnection))
	r.POST("/v1/sources/:source/spend", guard, h.handle(model.EnvelopeSpend))
}

func (h *Ingest) handle(kind model.EnvelopeKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		adapterID := c.GetString(adapterKey)
		var env model.Envelope
		if err := json.NewDecoder(c.Request.Body).Decode(&env); err != nil {
			reject(c, http.StatusBadRequest, "json_invalid", "invalid json")
			return
		}
		if err := checkEnvelope(kind, env); err != nil {
			reject(c, http.StatusBadRequest, "envelope_invalid", err.Error())
			return
		}
		env.Kind = kind
		env.SourceID = c.Param("source")
		if env.ID == "" {
			env.ID = uuid.NewString()
		}
		env.ReceivedAt = h.now().UTC()

		if err := h.publisher.Publish(c.Request.Context(), env.CampaignID, env); err != nil {
			h.log.Error("publish envelope failed",
				zap.String("adapter", adapterID),
				zap.String("source_id", env.SourceID),
				zap.Error(err))
			reject(c, http.StatusServiceUnavailable, "queue_unavailable", "queue unavailable")
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "id": env.ID})
	}
}

func checkEnvelope(kind model.EnvelopeKind, env model.Envelope) error {
	if env.CampaignID == "" {
		return errors.New("campaign_id is required")
	}
	switch kind {
	case model.EnvelopeMetrics:
		if env.Record == nil {
			return errors.New("record is required")
		}
	case model.EnvelopeRevenue:
		if len(env.Rows) == 0 {
			return errors.New("rows are required")
		}
	case model.EnvelopeConnection:
		if env.Connection == nil {
			return errors.New("connection is required")
		}
	case model.EnvelopeSpend:
		if env.Spend == nil {
			return errors.New("spend is required")
		}
	}
	return nil
}
