package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"prepstock-system/internal/gateway/middleware"
	teamhandler "prepstock-system/internal/services/team/handler"
)

type TeamHTTPHandler struct {
	teams *teamhandler.TeamHandler
}

func NewTeamHTTPHandler(teams *teamhandler.TeamHandler) *TeamHTTPHandler {
	return &TeamHTTPHandler{
		teams: teams,
	}
}

type CreateTeamRequest struct {
	TeamName string `json:"team_name" binding:"required"`
}

type JoinTeamRequest struct {
	TeamName string `json:"team_name" binding:"required"`
}

func (h *TeamHTTPHandler) MyTeam(c *gin.Context) {
	team, err := h.teams.MyTeam(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse("Team fetched", team))
}

func (h *TeamHTTPHandler) CreateTeam(c *gin.Context) {
	var req CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	team, err := h.teams.CreateTeam(c.Request.Context(), middleware.IdentityFrom(c), req.TeamName)
	if err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusCreated, successResponse("Team created", team))
}

func (h *TeamHTTPHandler) ListMembers(c *gin.Context) {
	members, err := h.teams.ListMembers(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse("Members fetched", members))
}

func (h *TeamHTTPHandler) ListPendingRequests(c *gin.Context) {
	requests, err := h.teams.ListPendingRequests(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse("Requests fetched", requests))
}

func (h *TeamHTTPHandler) MyPendingRequest(c *gin.Context) {
	request, err := h.teams.MyPendingRequest(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse("Request fetched", request))
}

func (h *TeamHTTPHandler) RequestToJoin(c *gin.Context) {
	var req JoinTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	request, err := h.teams.RequestToJoin(c.Request.Context(), middleware.IdentityFrom(c), req.TeamName)
	if err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusCreated, successResponse("Your request to join the team has been sent", request))
}

func (h *TeamHTTPHandler) ApproveRequest(c *gin.Context) {
	err := h.teams.ApproveRequest(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse("The user has been added to your team", nil))
}

func (h *TeamHTTPHandler) DenyRequest(c *gin.Context) {
	err := h.teams.DenyRequest(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse("The join request has been denied", nil))
}

func (h *TeamHTTPHandler) CancelRequest(c *gin.Context) {
	err := h.teams.CancelRequest(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse("Your join request has been cancelled", nil))
}

func (h *TeamHTTPHandler) RemoveMember(c *gin.Context) {
	err := h.teams.RemoveMember(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		c.JSON(statusFromErr(err), errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse("The team member has been removed", nil))
}
