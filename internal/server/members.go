package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	memberservice "github.com/launchkitlabs/launchkit/internal/member/service"
)

type createMemberRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// @Summary      Create Member
// @Description  Add a member to an organization and reconcile seat usage
// @Tags         members
// @Accept       json
// @Produce      json
// @Param        org_id   path  string               true  "Organization ID"
// @Param        request  body  createMemberRequest  true  "Create Member Request"
// @Success      200  {object}  DataResponse
// @Router       /organizations/{org_id}/members [post]
func (s *Server) CreateMember(c *gin.Context) {
	orgID, ok := orgIDParam(c)
	if !ok {
		return
	}

	var req createMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	member, err := s.memberSvc.Create(c.Request.Context(), memberservice.CreateMemberRequest{
		OrgID:       orgID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, member)
}

// @Summary      List Members
// @Description  List members of an organization
// @Tags         members
// @Accept       json
// @Produce      json
// @Param        org_id  path  string  true  "Organization ID"
// @Success      200  {object}  ListResponse
// @Router       /organizations/{org_id}/members [get]
func (s *Server) ListMembers(c *gin.Context) {
	orgID, ok := orgIDParam(c)
	if !ok {
		return
	}

	members, err := s.memberSvc.ListByOrganization(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondList(c, members, nil)
}

func memberIDParam(c *gin.Context) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := snowflake.ParseString(raw)
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return 0, false
	}
	return id, true
}

// @Summary      Deactivate Member
// @Description  Mark a member inactive and release their seat
// @Tags         members
// @Accept       json
// @Produce      json
// @Param        id  path  string  true  "Member ID"
// @Success      200  {object}  DataResponse
// @Router       /members/{id}/deactivate [post]
func (s *Server) DeactivateMember(c *gin.Context) {
	id, ok := memberIDParam(c)
	if !ok {
		return
	}

	if err := s.memberSvc.Deactivate(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, gin.H{"active": false})
}

// @Summary      Reactivate Member
// @Description  Mark a member active and reclaim a seat
// @Tags         members
// @Accept       json
// @Produce      json
// @Param        id  path  string  true  "Member ID"
// @Success      200  {object}  DataResponse
// @Router       /members/{id}/reactivate [post]
func (s *Server) ReactivateMember(c *gin.Context) {
	id, ok := memberIDParam(c)
	if !ok {
		return
	}

	if err := s.memberSvc.Reactivate(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, gin.H{"active": true})
}
