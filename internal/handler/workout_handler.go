package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"workout/backend/internal/controller"
	apperrors "workout/backend/internal/errors"
	"workout/backend/internal/fsm"
	"workout/backend/internal/middleware"
	"workout/backend/internal/model"
	"workout/backend/internal/service"
)

type WorkoutHandler struct {
	workoutService *service.WorkoutService

	// streams is cancelled by CloseStreams; open event streams end with it.
	streams      context.Context
	closeStreams context.CancelFunc
}

type completeSetRequest struct {
	ExerciseInstanceID string  `json:"exerciseInstanceId" binding:"required"`
	SetID              string  `json:"setId"`
	SetNumber          int     `json:"setNumber" binding:"required,min=1"`
	Weight             float64 `json:"weight"`
	Reps               int     `json:"reps"`
}

type skipSetRequest struct {
	ExerciseInstanceID string `json:"exerciseInstanceId" binding:"required"`
	SetNumber          int    `json:"setNumber" binding:"required,min=1"`
}

type extendRestRequest struct {
	Seconds int `json:"seconds"`
}

func NewWorkoutHandler(workoutService *service.WorkoutService) *WorkoutHandler {
	streams, closeStreams := context.WithCancel(context.Background())
	return &WorkoutHandler{
		workoutService: workoutService,
		streams:        streams,
		closeStreams:   closeStreams,
	}
}

// CloseStreams ends every open event stream. http.Server.Shutdown does not
// cancel request contexts, so the server registers this as a shutdown hook.
func (h *WorkoutHandler) CloseStreams() {
	h.closeStreams()
}

func (h *WorkoutHandler) GetState(c *gin.Context) {
	athleteID, ok := requireAthlete(c)
	if !ok {
		return
	}
	state, apiErr := h.workoutService.State(athleteID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

// Events streams snapshots as server-sent events. A "finished" event follows
// the completed snapshot and ends the stream; the stream also ends when the
// session runtime is replaced or the server shuts down.
func (h *WorkoutHandler) Events(c *gin.Context) {
	athleteID, ok := requireAthlete(c)
	if !ok {
		return
	}
	updates, unsubscribe, apiErr := h.workoutService.Subscribe(athleteID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.streams.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			c.SSEvent("state", snap)
			if snap.Phase == fsm.Completed {
				c.SSEvent("finished", gin.H{"sessionId": snap.SessionID})
				c.Writer.Flush()
				return
			}
			c.Writer.Flush()
		}
	}
}

func (h *WorkoutHandler) Begin(c *gin.Context) {
	athleteID, ok := requireAthlete(c)
	if !ok {
		return
	}
	var plan model.SessionPlan
	if !bindJSON(c, &plan) {
		return
	}
	state, apiErr := h.workoutService.Begin(c.Request.Context(), athleteID, plan)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"state": state})
}

func (h *WorkoutHandler) Pause(c *gin.Context) {
	h.command(c, h.workoutService.Pause)
}

func (h *WorkoutHandler) Resume(c *gin.Context) {
	h.command(c, h.workoutService.Resume)
}

func (h *WorkoutHandler) CompleteSet(c *gin.Context) {
	var req completeSetRequest
	if !bindJSON(c, &req) {
		return
	}
	h.command(c, func(ctx context.Context, athleteID string) (*controller.Snapshot, *apperrors.APIError) {
		return h.workoutService.CompleteSet(ctx, athleteID, controller.CompleteSetInput{
			ExerciseInstanceID: req.ExerciseInstanceID,
			SetID:              req.SetID,
			SetNumber:          req.SetNumber,
			Weight:             req.Weight,
			Reps:               req.Reps,
		})
	})
}

func (h *WorkoutHandler) SkipSet(c *gin.Context) {
	var req skipSetRequest
	if !bindJSON(c, &req) {
		return
	}
	h.command(c, func(ctx context.Context, athleteID string) (*controller.Snapshot, *apperrors.APIError) {
		return h.workoutService.SkipSet(ctx, athleteID, controller.SkipSetInput{
			ExerciseInstanceID: req.ExerciseInstanceID,
			SetNumber:          req.SetNumber,
		})
	})
}

func (h *WorkoutHandler) RequestFinish(c *gin.Context) {
	h.command(c, h.workoutService.RequestFinish)
}

func (h *WorkoutHandler) CancelFinish(c *gin.Context) {
	h.command(c, h.workoutService.CancelFinish)
}

func (h *WorkoutHandler) ConfirmFinish(c *gin.Context) {
	h.command(c, h.workoutService.ConfirmFinish)
}

func (h *WorkoutHandler) ExtendRest(c *gin.Context) {
	var req extendRestRequest
	if !bindJSON(c, &req) {
		return
	}
	h.command(c, func(ctx context.Context, athleteID string) (*controller.Snapshot, *apperrors.APIError) {
		return h.workoutService.ExtendRest(ctx, athleteID, req.Seconds)
	})
}

func (h *WorkoutHandler) SkipRest(c *gin.Context) {
	h.command(c, h.workoutService.SkipRest)
}

func (h *WorkoutHandler) GetHistory(c *gin.Context) {
	athleteID, ok := requireAthlete(c)
	if !ok {
		return
	}
	limit := 0
	if rawLimit := c.Query("limit"); rawLimit != "" {
		if parsed, err := strconv.Atoi(rawLimit); err == nil {
			limit = parsed
		}
	}

	sessions, apiErr := h.workoutService.History(c.Request.Context(), athleteID, limit)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *WorkoutHandler) ListExercises(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"exercises": h.workoutService.Exercises()})
}

type commandFunc func(ctx context.Context, athleteID string) (*controller.Snapshot, *apperrors.APIError)

// command runs fn as the calling athlete and writes the resulting state.
func (h *WorkoutHandler) command(c *gin.Context, fn commandFunc) {
	athleteID, ok := requireAthlete(c)
	if !ok {
		return
	}
	state, apiErr := fn(c.Request.Context(), athleteID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func requireAthlete(c *gin.Context) (string, bool) {
	athleteID := middleware.AthleteID(c)
	if athleteID == "" {
		writeError(c, apperrors.Unauthorized("missing athlete identity"))
		return "", false
	}
	return athleteID, true
}
