package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"outreach/internal/service"
)

type CampaignHandler struct {
	campaigns *service.CampaignService
	logger    *zap.Logger
}

func NewCampaignHandler(campaigns *service.CampaignService, logger *zap.Logger) *CampaignHandler {
	return &CampaignHandler{
		campaigns: campaigns,
		logger:    logger,
	}
}

// StartCampaign handles POST /campaigns
func (h *CampaignHandler) StartCampaign(c *gin.Context) {
	var req struct {
		ContactID int64           `json:"contact_id" binding:"required"`
		Plan      json.RawMessage `json:"plan" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	tenantID := c.GetInt64("tenant_id")

	campaign, warnings, err := h.campaigns.StartCampaign(c.Request.Context(), tenantID, req.ContactID, req.Plan)
	if err != nil {
		if service.IsTerminal(err) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "warnings": warnings})
			return
		}
		h.logger.Error("Failed to start campaign", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start campaign"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"campaign_id":  campaign.ID,
		"current_node": campaign.CurrentNodeID,
		"status":       campaign.Status,
		"warnings":     warnings,
	})
}

// GetCampaign handles GET /campaigns/:id
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	campaignID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign id"})
		return
	}

	tenantID := c.GetInt64("tenant_id")

	campaign, pending, err := h.campaigns.GetCampaign(c.Request.Context(), tenantID, campaignID)
	if err != nil {
		h.logger.Error("Failed to load campaign", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load campaign"})
		return
	}
	if campaign == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"campaign_id":     campaign.ID,
		"contact_id":      campaign.ContactID,
		"current_node":    campaign.CurrentNodeID,
		"status":          campaign.Status,
		"pending_actions": pending,
	})
}
