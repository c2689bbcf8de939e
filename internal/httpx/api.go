package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"marketpulse/internal/crosswalk"
	"marketpulse/internal/engine"
	"marketpulse/internal/health"
	"marketpulse/internal/model"
	"marketpulse/internal/trend"
)

// Engine is the campaign query and configuration surface served over HTTP.
type Engine interface {
	Campaigns(ctx context.Context) ([]model.Campaign, error)
	Campaign(ctx context.Context, campaignID string) (model.Campaign, error)
	RegisterCampaign(ctx context.Context, c model.Campaign) (model.Campaign, error)
	RemoveCampaign(ctx context.Context, campaignID string) error
	Sources(ctx context.Context, campaignID string) ([]model.SourceStatus, error)
	AggregatedTotals(ctx context.Context, campaignID string) (engine.Totals, error)
	DiscoverValues(ctx context.Context, campaignID string, q engine.DiscoveryQuery) ([]crosswalk.ValueCount, error)
	PreviewCrosswalk(ctx context.Context, campaignID string, draft crosswalk.Draft) (crosswalk.Resolution, error)
	SaveRevenueMapping(ctx context.Context, campaignID string, m model.RevenueMapping) (engine.SaveResult, error)
	RevenueMappings(ctx context.Context, campaignID string) ([]model.RevenueMapping, error)
	SaveSpendMapping(ctx context.Context, campaignID string, m model.SpendMapping) (model.SpendMapping, error)
	SpendMappings(ctx context.Context, campaignID string) ([]model.SpendMapping, error)
	Goals(ctx context.Context, campaignID string) (engine.Goals, error)
	SaveGoals(ctx context.Context, campaignID string, g engine.Goals) error
	HealthScore(ctx context.Context, campaignID string) (health.Report, error)
	Comparison(ctx context.Context, campaignID string, baseline trend.Baseline) (trend.Comparison, error)
	TrendSeries(ctx context.Context, campaignID string, g trend.Granularity) (engine.TrendResult, error)
	RecordSnapshot(ctx context.Context, campaignID string) (model.Snapshot, error)
}

// API serves campaign metrics and configuration.
type API struct {
	engine  Engine
	timeout time.Duration
}

// NewAPI builds the handlers. Each request is bounded by timeout.
func NewAPI(e Engine, timeout time.Duration) *API {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &API{engine: e, timeout: timeout}
}

// Register mounts the campaign routes.
func (a *API) Register(r gin.IRouter) {
	r.GET("/v1/campaigns", a.campaigns)
	g := r.Group("/v1/campaigns/:id")
	g.GET("", a.campaign)
	g.GET("/sources", a.sources)
	g.GET("/totals", a.totals)
	g.GET("/discover", a.discover)
	g.POST("/crosswalk/preview", a.preview)
	g.GET("/revenue-mappings", a.revenueMappings)
	g.POST("/revenue-mappings", a.saveRevenueMapping)
	g.GET("/spend-mappings", a.spendMappings)
	g.POST("/spend-mappings", a.saveSpendMapping)
	g.GET("/goals", a.goals)
	g.PUT("/goals", a.saveGoals)
	g.GET("/health", a.health)
	g.GET("/comparison", a.comparison)
	g.GET("/trend", a.trend)
	g.POST("/snapshots", a.recordSnapshot)
}

// RegisterPush mounts the routes the campaign owner pushes registrations through. guard
// authenticates the caller.
func (a *API) RegisterPush(r gin.IRouter, guard gin.HandlerFunc) {
	r.PUT("/v1/campaigns/:id", guard, a.putCampaign)
	r.DELETE("/v1/campaigns/:id", guard, a.deleteCampaign)
}

func (a *API) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), a.timeout)
}

func (a *API) campaigns(c *gin.Context) {
	ctx, cancel := a.ctx(c)
	defer cancel()
	out, err := a.engine.Campaigns(ctx)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": out})
}

func (a *API) campaign(c *gin.Context) {
	ctx, cancel := a.ctx(c)
	defer cancel()
	out, err := a.engine.Campaign(ctx, c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) sources(c *gin.Context) {
	ctx, cancel := a.ctx(c)
	defer cancel()
	out, err := a.engine.Sources(ctx, c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaign_id": c.Param("id"), "sources": out})
}

func (a *API) putCampaign(c *gin.Context) {
	var in model.Campaign
	if err := c.ShouldBindJSON(&in); err != nil {
		reject(c, http.StatusBadRequest, "json_invalid", "invalid json")
		return
	}
	in.ID = c.Param("id")
	ctx, cancel := a.ctx(c)
	defer cancel()
	out, err := a.engine.RegisterCampaign(ctx, in)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) deleteCampaign(c *gin.Context) {
	ctx, cancel := a.ctx(c)
	defer cancel()
	if err := a.engine.RemoveCampaign(ctx, c.Param("id")); err != nil {
		WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) totals(c *gin.Context) {
	ctx, cancel := a.ctx(c)
	defer cancel()
	out, err := a.engine.AggregatedTotals(ctx, c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) discover(c *gin.Context) {
	q := engine.DiscoveryQuery{
		SourceType: model.SourceType(c.Query("source_type")),
		Key:        c.Query("key"),
		Filter:     c.Query("filter"),
	}
	var err error
	if q.Limit, err = optionalInt(c, "limit"); err != nil {
		reject(c, http.StatusBadRequest, "query_invalid", "limit must be a number")
		return
	}
	if q.LookbackDays, err = optionalInt(c, "lookback_days"); err != nil {
		reject(c, http.StatusBadRequest, "query_invalid", "lookback_days must be a number")
		return
	}
	ctx, cancel := a.ctx(c)
	defer cancel()
	values, err := a.engine.DiscoverValues(ctx, c.Param("id"), q)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaign_id": c.Param("id"), "key": q.Key, "values": values})
}

func optionalInt(c *gin.Context, name string) (int, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func (a *API) preview(c *gin.Context) {
	var draft crosswalk.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		reject(c, http.StatusBadRequest, "json_invalid", "invalid json")
		return
	}
	ctx, cancel := a.ctx(c)
	defer cancel()
	res, err := a.engine.PreviewCrosswalk(ctx, c.Param("id"), draft)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (a *API) revenueMappings(c *gin.Context) {
	ctx, cancel := a.ctx(c)
	defer cancel()
	out, err := a.engine.RevenueMappings(ctx, c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mappings": out})
}

func (a *API) saveRevenueMapping(c *gin.Context) {
	var m model.RevenueMapping
	if err := c.ShouldBindJSON(&m); err != nil {
		reject(c, http.StatusBadRequest, "json_invalid", "invalid json")
		return
	}
	ctx, cancel := a.ctx(c)
	defer cancel()
	res, err := a.engine.SaveRevenueMapping(ctx, c.Param("id"), m)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (a *API) spendMappings(c *gin.Context) {
	ctx, cancel := a.ctx(c)
	defer cancel()
	out, err := a.engine.SpendMappings(ctx, c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mappings": out})
}

func (a *API) saveSpendMapping(c *gin.Context) {
	var m model.SpendMapping
	if err := c.ShouldBindJSON(&m); err != nil {
		reject(c, http.StatusBadRequest, "json_invalid", "invalid json")
		return
	}
	ctx, cancel := a.ctx(c)
	defer cancel()
	out, err := a.engine.SaveSpendMapping(ctx, c.Param("id"), m)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) goals(c *gin.Context) {
	ctx, cancel := a.ctx(c)
	defer cancel()
	out, err := a.engine.Goals(ctx, c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) saveGoals(c *gin.Context) {
	var g engine.Goals
	if err := c.ShouldBindJSON(&g); err != nil {
		reject(c, http.StatusBadRequest, "json_invalid", "invalid json")
		return
	}
	ctx, cancel := a.ctx(c)
	defer cancel()
	if err := a.engine.SaveGoals(ctx, c.Param("id"), g); err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (a *API) health(c *gin.Context) {
	ctx, cancel := a.ctx(c)
	defer cancel()
	out, err := a.engine.HealthScore(ctx, c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) comparison(c *gin.Context) {
	baseline, err := trend.ParseBaseline(c.Query("baseline"))
	if err != nil {
		WriteError(c, err)
		return
	}
	ctx, cancel := a.ctx(c)
	defer cancel()
	out, err := a.engine.Comparison(ctx, c.Param("id"), baseline)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) trend(c *gin.Context) {
	g, err := trend.ParseGranularity(c.Query("granularity"))
	if err != nil {
		WriteError(c, err)
		return
	}
	ctx, cancel := a.ctx(c)
	defer cancel()
	out, err := a.engine.TrendSeries(ctx, c.Param("id"), g)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=30")
	c.JSON(http.StatusOK, out)
}

func (a *API) recordSnapshot(c *gin.Context) {
	ctx, cancel := a.ctx(c)
	defer cancel()
	out, err := a.engine.RecordSnapshot(ctx, c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}
