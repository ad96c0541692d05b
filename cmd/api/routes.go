package main

import (
	"context"

	"github.com/gin-gonic/gin"

	"campaign-dialer/internal/audit"
	"campaign-dialer/internal/calls"
	"campaign-dialer/internal/campaigns"
	"campaign-dialer/internal/config"
	"campaign-dialer/internal/dispatcher"
	"campaign-dialer/internal/httpapi"
	"campaign-dialer/internal/rbac"
	"campaign-dialer/internal/reporting"
	"campaign-dialer/internal/webhook"
)

type routeDeps struct {
	cfg        config.Config
	authMW     gin.HandlerFunc
	calls      calls.Store
	dispatcher *dispatcher.Dispatcher
	campaigns  campaigns.Repository
	reporting  *reporting.Service
	audit      *audit.Service
	checks     map[string]func(context.Context) error
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	api := httpapi.Handlers{
		Campaigns:  deps.campaigns,
		Dispatcher: deps.dispatcher,
		Reporting:  deps.reporting,
		Audit:      deps.audit,
		Checks:     deps.checks,
	}

	// public
	r.GET("/healthz", api.Health)

	// Provider webhooks (public, Twilio-signed).
	{
		h := webhook.TwilioHandler{
			Calls:             deps.calls,
			Completions:       deps.dispatcher,
			AuthToken:         deps.cfg.Twilio.AuthToken,
			ValidateSignature: deps.cfg.Twilio.ValidateSignature,
			StatusURL:         deps.cfg.StatusCallbackURL(),
			AnswerURL:         deps.cfg.AnswerURL(),
		}
		r.POST("/webhooks/twilio/status", h.Status)
		r.POST("/webhooks/twilio/answer", h.Answer)
	}

	// protected operator API
	v1 := r.Group("/v1")
	v1.Use(deps.authMW, rbac.RequireOrganization())
	{
		camps := v1.Group("/campaigns/:campaign_id")
		camps.POST("/dispatch", rbac.RequireAnyRole(rbac.DispatchRoles...), api.DispatchCampaign)
		camps.GET("/progress", rbac.RequireAnyRole(rbac.ReportRoles...), api.CampaignProgress)
	}
}
