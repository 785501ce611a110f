package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"github.com/launchkitlabs/launchkit/internal/access"
	subscriptiondomain "github.com/launchkitlabs/launchkit/internal/subscription/domain"
	"github.com/launchkitlabs/launchkit/pkg/db/pagination"
)

func orgIDParam(c *gin.Context) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.Param("org_id"))
	id, err := snowflake.ParseString(raw)
	if err != nil {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return 0, false
	}
	return id, true
}

// @Summary      Get Subscription
// @Description  Fetch the subscription record for an organization
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Param        org_id  path  string  true  "Organization ID"
// @Success      200  {object}  DataResponse
// @Router       /organizations/{org_id}/subscription [get]
func (s *Server) GetSubscription(c *gin.Context) {
	orgID, ok := orgIDParam(c)
	if !ok {
		return
	}

	sub, err := s.subscriptionSvc.GetByOrganization(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, sub)
}

// @Summary      Get Subscription Stats
// @Description  Seat usage and access state summary for an organization
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Param        org_id  path  string  true  "Organization ID"
// @Success      200  {object}  DataResponse
// @Router       /organizations/{org_id}/subscription/stats [get]
func (s *Server) GetSubscriptionStats(c *gin.Context) {
	orgID, ok := orgIDParam(c)
	if !ok {
		return
	}

	stats, err := s.subscriptionSvc.Stats(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, stats)
}

// @Summary      Evaluate Access
// @Description  Decide whether a request path is allowed under the organization's access state
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Param        org_id  path   string  true  "Organization ID"
// @Param        path    query  string  true  "Request path to evaluate"
// @Success      200  {object}  DataResponse
// @Router       /organizations/{org_id}/subscription/access [get]
func (s *Server) EvaluateAccess(c *gin.Context) {
	orgID, ok := orgIDParam(c)
	if !ok {
		return
	}

	path := strings.TrimSpace(c.Query("path"))
	if path == "" {
		AbortWithError(c, newValidationError("path", "invalid_path", "invalid path"))
		return
	}

	sub, err := s.subscriptionSvc.GetByOrganization(c.Request.Context(), orgID)
	if err != nil && !isNotFound(err) {
		AbortWithError(c, err)
		return
	}

	respondData(c, access.Evaluate(sub, path))
}

// @Summary      List Billing Events
// @Description  Paginated billing event history for an organization
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Param        org_id      path   string  true   "Organization ID"
// @Param        event_type  query  string  false  "Event Type"
// @Param        page_token  query  string  false  "Page Token"
// @Param        page_size   query  int     false  "Page Size"
// @Success      200  {object}  ListResponse
// @Router       /organizations/{org_id}/billing-events [get]
func (s *Server) ListBillingEvents(c *gin.Context) {
	orgID, ok := orgIDParam(c)
	if !ok {
		return
	}

	var query struct {
		pagination.Pagination
		EventType string `form:"event_type"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.subscriptionSvc.BillingHistory(c.Request.Context(), subscriptiondomain.BillingHistoryRequest{
		OrgID:     orgID,
		EventType: strings.TrimSpace(query.EventType),
		PageToken: query.PageToken,
		PageSize:  int(query.PageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, resp.Events, &resp.PageInfo)
}

type seatChangeRequest struct {
	Count int `json:"count"`
}

// @Summary      Add Seats
// @Description  Increase the purchased seat total for an organization
// @Tags         seats
// @Accept       json
// @Produce      json
// @Param        org_id   path  string             true  "Organization ID"
// @Param        request  body  seatChangeRequest  true  "Seat Change Request"
// @Success      200  {object}  DataResponse
// @Router       /organizations/{org_id}/seats/add [post]
func (s *Server) AddSeats(c *gin.Context) {
	orgID, ok := orgIDParam(c)
	if !ok {
		return
	}

	var req seatChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	sub, err := s.subscriptionSvc.AddSeats(c.Request.Context(), orgID, req.Count)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, sub)
}

// @Summary      Remove Seats
// @Description  Decrease the purchased seat total for an organization
// @Tags         seats
// @Accept       json
// @Produce      json
// @Param        org_id   path  string             true  "Organization ID"
// @Param        request  body  seatChangeRequest  true  "Seat Change Request"
// @Success      200  {object}  DataResponse
// @Router       /organizations/{org_id}/seats/remove [post]
func (s *Server) RemoveSeats(c *gin.Context) {
	orgID, ok := orgIDParam(c)
	if !ok {
		return
	}

	var req seatChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	sub, err := s.subscriptionSvc.RemoveSeats(c.Request.Context(), orgID, req.Count)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, sub)
}

// @Summary      Clear Pending Downgrade
// @Description  Drop a scheduled downgrade before it takes effect
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Param        org_id  path  string  true  "Organization ID"
// @Success      200  {object}  DataResponse
// @Router       /organizations/{org_id}/pending-downgrade [delete]
func (s *Server) ClearPendingDowngrade(c *gin.Context) {
	orgID, ok := orgIDParam(c)
	if !ok {
		return
	}

	if err := s.subscriptionSvc.ClearPendingDowngrade(c.Request.Context(), orgID); err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, gin.H{"cleared": true})
}
