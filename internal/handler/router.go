package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/yourusername/bible-tournament-api/internal/middleware"
	"github.com/yourusername/bible-tournament-api/pkg/auth"
)

// Handlers набор обработчиков API
type Handlers struct {
	Questions     *QuestionHandler
	Tournaments   *TournamentHandler
	Bonus         *BonusHandler
	Qualification *QualificationHandler
	WS            *WSHandler
}

// RegisterRoutes настраивает маршруты API и WebSocket
func RegisterRoutes(router *gin.Engine, h Handlers, authMiddleware *middleware.AuthMiddleware, limiter *middleware.RateLimiter) {
	api := router.Group("/api")
	api.Use(authMiddleware.RequireAuth())

	// Банк вопросов тенанта
	questions := api.Group("/questions")
	{
		questions.GET("", authMiddleware.Require(auth.CapManageQuestions), h.Questions.ListQuestions)
		questions.POST("", authMiddleware.Require(auth.CapManageQuestions), h.Questions.CreateQuestion)
		questions.GET("/stats/status-distribution", authMiddleware.Require(auth.CapViewAnalytics), h.Questions.StatusDistribution)
		questions.GET("/stats/category-health", authMiddleware.Require(auth.CapViewAnalytics), h.Questions.CategoryHealth)

		questionWithID := questions.Group("/:id")
		questionWithID.Use(middleware.ExtractUintParam("id", "questionID"))
		{
			questionWithID.GET("", authMiddleware.Require(auth.CapManageQuestions), h.Questions.GetQuestion)
			questionWithID.GET("/history", authMiddleware.Require(auth.CapViewAnalytics), h.Questions.History)
			questionWithID.POST("/submit", authMiddleware.Require(auth.CapManageQuestions), h.Questions.SubmitForReview)
			questionWithID.POST("/review", authMiddleware.Require(auth.CapReviewQuestions), h.Questions.ReviewQuestion)
			questionWithID.POST("/transition", authMiddleware.Require(auth.CapManageQuestions), h.Questions.Transition)
		}
	}

	// Турниры: набор вопросов, настройки и квалификация
	tournamentWithID := api.Group("/tournaments/:id")
	tournamentWithID.Use(middleware.ExtractUintParam("id", "tournamentID"))
	{
		manage := tournamentWithID.Group("")
		manage.Use(authMiddleware.Require(auth.CapManageTournaments))
		{
			manage.GET("/questions", h.Tournaments.GetConfig)
			manage.POST("/questions/select", h.Tournaments.SelectQuestions)
			manage.GET("/questions/validate", h.Tournaments.Validate)
			manage.PUT("/questions", h.Tournaments.SaveConfig)
			manage.POST("/activate", h.Tournaments.Activate)
			manage.POST("/end", h.Tournaments.End)
			manage.POST("/release-practice", h.Tournaments.ReleasePractice)
			manage.PUT("/qualification", h.Tournaments.SaveQualificationSettings)
		}

		quiz := tournamentWithID.Group("")
		quiz.Use(authMiddleware.Require(auth.CapTakeQuiz))
		{
			quiz.GET("/qualification", h.Tournaments.GetQualificationSettings)
			quiz.POST("/application", h.Qualification.Apply)
			quiz.GET("/application", h.Qualification.GetApplication)
			quiz.GET("/application/final-score", h.Qualification.FinalScore)
			quiz.POST("/attempts", limiter.Limit(middleware.QuizAttemptRateLimitConfig()), h.Qualification.StartAttempt)
			quiz.POST("/attempts/:attemptId/submit",
				middleware.ExtractUintParam("attemptId", "attemptID"),
				limiter.Limit(middleware.QuizAttemptRateLimitConfig()),
				h.Qualification.SubmitAttempt)
		}
	}

	// Бонусные вопросы
	bonus := api.Group("/bonus")
	{
		bonus.GET("/eligibility", authMiddleware.Require(auth.CapRequestBonus), h.Bonus.GetEligibility)
		bonus.GET("/requests", authMiddleware.Require(auth.CapRequestBonus), h.Bonus.ListMyRequests)
		bonus.POST("/requests",
			authMiddleware.Require(auth.CapRequestBonus),
			limiter.Limit(middleware.BonusRequestRateLimitConfig()),
			h.Bonus.CreateRequest)

		requestWithID := bonus.Group("/requests/:id")
		requestWithID.Use(middleware.ExtractUUIDParam("id", "requestID"))
		{
			requestWithID.GET("", authMiddleware.Require(auth.CapRequestBonus, auth.CapApproveBonus), h.Bonus.GetRequest)
			requestWithID.GET("/progress", authMiddleware.Require(auth.CapRequestBonus, auth.CapApproveBonus), h.Bonus.GetProgress)
			requestWithID.POST("/retwist", authMiddleware.Require(auth.CapRequestBonus), h.Bonus.Retwist)
			requestWithID.POST("/cancel", authMiddleware.Require(auth.CapRequestBonus), h.Bonus.Cancel)
			requestWithID.POST("/approve", authMiddleware.Require(auth.CapApproveBonus), h.Bonus.Approve)
		}
	}

	// WebSocket прогресса бонусного запроса. Токен передается параметром ?token=
	router.GET("/ws/bonus-requests/:id",
		authMiddleware.RequireAuth(),
		authMiddleware.Require(auth.CapRequestBonus, auth.CapApproveBonus),
		middleware.ExtractUUIDParam("id", "requestID"),
		h.WS.HandleBonusProgress)
}
