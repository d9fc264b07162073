package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/apply_go_server/config"
	"github.com/qs3c/apply_go_server/internal/api/handler"
	"github.com/qs3c/apply_go_server/internal/api/middleware"
)

type Router struct {
	applicationHandler *handler.ApplicationHandler
	managerHandler     *handler.ManagerHandler
	answerHandler      *handler.AnswerHandler
	profileHandler     *handler.ProfileHandler
	websocketHandler   *handler.WebSocketHandler
	cfg                *config.Config
}

func NewRouter(
	applicationHandler *handler.ApplicationHandler,
	managerHandler *handler.ManagerHandler,
	answerHandler *handler.AnswerHandler,
	profileHandler *handler.ProfileHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		applicationHandler: applicationHandler,
		managerHandler:     managerHandler,
		answerHandler:      answerHandler,
		profileHandler:     profileHandler,
		websocketHandler:   websocketHandler,
		cfg:                cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// 公开接口
		api.GET("/health", handler.Health)

		// WebSocket，token 走查询参数
		api.GET("/ws", r.websocketHandler.Handle)

		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			// 申请
			applications := authenticated.Group("/applications")
			{
				applications.POST("", r.applicationHandler.Enqueue)
				applications.GET("", r.applicationHandler.List)
				applications.GET("/:id", r.applicationHandler.Get)
				applications.GET("/:id/logs", r.applicationHandler.Logs)
				applications.GET("/:id/screenshot", r.applicationHandler.Screenshot)
				applications.POST("/:id/review", r.applicationHandler.Review)
				applications.POST("/:id/retry", r.applicationHandler.Retry)
			}

			// 任务管理器
			manager := authenticated.Group("/manager")
			{
				manager.GET("/status", r.managerHandler.Status)
				manager.POST("/start", r.managerHandler.Start)
				manager.POST("/stop", r.managerHandler.Stop)
			}

			// 标准答案
			answers := authenticated.Group("/answers")
			{
				answers.GET("", r.answerHandler.List)
				answers.POST("", r.answerHandler.Create)
				answers.PUT("/:id", r.answerHandler.Update)
			}

			// 资料冲突
			profile := authenticated.Group("/profile")
			{
				profile.GET("/conflicts", r.profileHandler.Conflicts)
				profile.POST("/conflicts/resolve", r.profileHandler.Resolve)
			}
		}
	}

	return engine
}
