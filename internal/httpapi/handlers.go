package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"campaign-dialer/internal/audit"
	"campaign-dialer/internal/auth"
	"campaign-dialer/internal/campaigns"
	"campaign-dialer/internal/dispatcher"
	"campaign-dialer/internal/rbac"
	"campaign-dialer/internal/reporting"
	"campaign-dialer/internal/telephony"
	"campaign-dialer/pkg/logger"
)

// CampaignStarter begins a campaign's call chain.
type CampaignStarter interface {
	StartCampaign(ctx context.Context, campaignID string) (*telephony.CallHandle, error)
}

// Handlers groups the operator HTTP handlers.
// Keep these thin: parse input, check tenancy, call internal services, return JSON.
type Handlers struct {
	Campaigns  campaigns.Repository
	Dispatcher CampaignStarter
	Reporting  *reporting.Service
	// Audit is optional; failures to record are logged only.
	Audit *audit.Service

	// Checks are named readiness probes run by Health.
	Checks map[string]func(ctx context.Context) error
}

// DispatchCampaign handles POST /v1/campaigns/:campaign_id/dispatch.
// RBAC: owner or operator.
func (h Handlers) DispatchCampaign(c *gin.Context) {
	if h.Dispatcher == nil || h.Campaigns == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dispatcher not configured"})
		return
	}
	camp, ok := h.loadCampaign(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	handle, err := h.Dispatcher.StartCampaign(ctx, camp.ID)
	h.audit(c, camp, handle, err)
	if err != nil {
		status, msg := dispatchError(err)
		logger.FromGin(c).Warn("manual dispatch failed", "campaign_id", camp.ID, "err", err)
		c.AbortWithStatusJSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusAccepted, handle)
}

// CampaignProgress handles GET /v1/campaigns/:campaign_id/progress.
func (h Handlers) CampaignProgress(c *gin.Context) {
	if h.Reporting == nil || h.Campaigns == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	camp, ok := h.loadCampaign(c)
	if !ok {
		return
	}
	out, err := h.Reporting.Progress(c.Request.Context(), camp.ID)
	if err != nil {
		logger.FromGin(c).Error("campaign progress failed", "campaign_id", camp.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "progress lookup failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// Health reports 200 when every check passes and 503 otherwise.
func (h Handlers) Health(c *gin.Context) {
	status := http.StatusOK
	results := make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(c.Request.Context()); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	c.JSON(status, gin.H{"checks": results})
}

// loadCampaign resolves :campaign_id and enforces tenant scoping. Campaigns of
// other organizations are reported as missing.
func (h Handlers) loadCampaign(c *gin.Context) (campaigns.Campaign, bool) {
	id := c.Param("campaign_id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaign_id required"})
		return campaigns.Campaign{}, false
	}
	camp, err := h.Campaigns.GetCampaign(c.Request.Context(), id)
	if errors.Is(err, campaigns.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return campaigns.Campaign{}, false
	}
	if err != nil {
		logger.FromGin(c).Error("campaign lookup failed", "campaign_id", id, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaign lookup failed"})
		return campaigns.Campaign{}, false
	}
	if !rbac.CanAccessOrganization(c.Request.Context(), camp.OrganizationID) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return campaigns.Campaign{}, false
	}
	return camp, true
}

func (h Handlers) audit(c *gin.Context, camp campaigns.Campaign, handle *telephony.CallHandle, cause error) {
	if h.Audit == nil {
		return
	}
	ctx := c.Request.Context()
	userID, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)
	callID := ""
	if handle != nil {
		callID = handle.ProviderCallID
	}
	actor := audit.Actor{UserID: userID, Role: role, IP: c.ClientIP()}
	if err := h.Audit.LogManualDispatch(ctx, camp.OrganizationID, camp.ID, actor, callID, cause); err != nil {
		logger.FromGin(c).Warn("audit append failed", "campaign_id", camp.ID, "err", err)
	}
}

func dispatchError(err error) (int, string) {
	switch {
	case errors.Is(err, dispatcher.ErrCampaignInactive):
		return http.StatusConflict, "campaign not in progress"
	case errors.Is(err, dispatcher.ErrLeadUnavailable):
		return http.StatusConflict, "no pending lead available"
	case errors.Is(err, dispatcher.ErrConfiguration):
		return http.StatusServiceUnavailable, "outbound number not configured"
	case errors.Is(err, dispatcher.ErrCodeExhausted):
		return http.StatusServiceUnavailable, "no call code available"
	case errors.Is(err, dispatcher.ErrGateway):
		return http.StatusBadGateway, "telephony provider rejected the call"
	default:
		return http.StatusInternalServerError, "dispatch failed"
	}
}
