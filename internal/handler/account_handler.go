package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workout/backend/internal/service"
)

type AccountHandler struct {
	accounts *service.AccountService
	workouts *service.WorkoutService
}

type registerRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func NewAccountHandler(accounts *service.AccountService, workouts *service.WorkoutService) *AccountHandler {
	return &AccountHandler{accounts: accounts, workouts: workouts}
}

func (h *AccountHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	signedIn, apiErr := h.accounts.Register(c.Request.Context(), service.Registration{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, signedIn)
}

func (h *AccountHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	signedIn, apiErr := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, signedIn)
}

// Me returns the calling athlete with totals over their completed sessions.
func (h *AccountHandler) Me(c *gin.Context) {
	athleteID, ok := requireAthlete(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	athlete, apiErr := h.accounts.Profile(ctx, athleteID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	summary, apiErr := h.workouts.Summary(ctx, athleteID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"athlete": athlete, "summary": summary})
}
