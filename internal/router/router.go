package router

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"workout/backend/internal/handler"
	"workout/backend/internal/middleware"
)

func New(
	tokens middleware.TokenParser,
	accountHandler *handler.AccountHandler,
	workoutHandler *handler.WorkoutHandler,
	gatherer prometheus.Gatherer,
	cors middleware.CORSPolicy,
	logger *slog.Logger,
) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RequestLogger(logger), gin.Recovery(), middleware.CORS(cors))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", accountHandler.Register)
	auth.POST("/login", accountHandler.Login)

	authenticated := middleware.Auth(tokens)
	api.GET("/athlete/me", authenticated, accountHandler.Me)

	workout := api.Group("/workout")
	workout.Use(authenticated)
	workout.GET("/state", workoutHandler.GetState)
	workout.GET("/events", workoutHandler.Events)
	workout.GET("/history", workoutHandler.GetHistory)
	workout.GET("/exercises", workoutHandler.ListExercises)
	workout.POST("/sessions", workoutHandler.Begin)
	workout.POST("/pause", workoutHandler.Pause)
	workout.POST("/resume", workoutHandler.Resume)
	workout.POST("/sets/complete", workoutHandler.CompleteSet)
	workout.POST("/sets/skip", workoutHandler.SkipSet)
	workout.POST("/finish/request", workoutHandler.RequestFinish)
	workout.POST("/finish/cancel", workoutHandler.CancelFinish)
	workout.POST("/finish/confirm", workoutHandler.ConfirmFinish)
	workout.POST("/rest/extend", workoutHandler.ExtendRest)
	workout.POST("/rest/skip", workoutHandler.SkipRest)

	return engine
}
