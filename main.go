package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/linxy101-sys/too/client/genapi"
	"github.com/linxy101-sys/too/controller"
	"github.com/linxy101-sys/too/dao/mongo"
	"github.com/linxy101-sys/too/dao/mysql"
	"github.com/linxy101-sys/too/dao/store"
	"github.com/linxy101-sys/too/logic"
	"github.com/linxy101-sys/too/pkg/snowflake"
	sse "github.com/linxy101-sys/too/pkg/sse"
)

func init() {
	// 如果环境变量未设置，则设置默认值
	if os.Getenv("WORKBENCH_BASE_URL") == "" {
		os.Setenv("WORKBENCH_BASE_URL", "https://xinyuanai666.com")
	}
	if os.Getenv("WORKBENCH_API_KEY") == "" {
		os.Setenv("WORKBENCH_API_KEY", "sk-hr1jWTbl00qsSrKY6mGf6H8GTTV5Zh0jkzjYb2z7igv9CRcg")
	}
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// 初始化雪花算法
	if err := snowflake.Init(1); err != nil {
		log.Fatalf("Failed to init Snowflake: %v", err)
	}

	// 校验错误翻译器
	if err := controller.InitTrans("zh"); err != nil {
		log.Fatalf("Failed to init validator trans: %v", err)
	}

	// 选择用户文档存储：默认 Mongo，WORKBENCH_STORE=redis 时走 Redis
	var userStore store.UserStore
	if os.Getenv("WORKBENCH_STORE") == "redis" {
		addr := os.Getenv("REDIS_ADDR")
		if addr == "" {
			addr = "localhost:6379"
		}
		rs, err := store.InitRedis(addr)
		if err != nil {
			log.Fatalf("Failed to init Redis: %v", err)
		}
		userStore = rs
	} else {
		uri := os.Getenv("MONGO_URI")
		if uri == "" {
			uri = "mongodb://localhost:27017"
		}
		client, err := mongo.GetClient(uri)
		if err != nil {
			log.Fatalf("Failed to init MongoDB: %v", err)
		}
		userStore = mongo.NewUserStore(client)
	}

	// 审计日志的 MySQL 是可选项，连不上只降级不退出
	if dsn := os.Getenv("MYSQL_DSN"); dsn != "" {
		if err := mysql.Init(dsn); err != nil {
			zap.L().Warn("mysql unavailable, action log disabled", zap.Error(err))
		} else {
			defer mysql.Close()
		}
	}

	api := genapi.NewClient(genapi.Config{
		BaseURL: os.Getenv("WORKBENCH_BASE_URL"),
		APIKey:  os.Getenv("WORKBENCH_API_KEY"),
	})

	// 初始化并启动 SSE hub
	sseHub := sse.NewHub()
	sse.SetDefaultHub(sseHub)
	go sseHub.Run()

	gate := &logic.QuotaGate{Policy: logic.QuotaPerTask}
	sched := logic.NewScheduler(api)
	mgr := logic.NewManager(userStore, sseHub, sched)
	videoSvc := logic.NewVideoService(api, gate, mgr)
	imageSvc := logic.NewImageService(api, gate, mgr)

	h := controller.NewHandler(mgr, videoSvc, imageSvc, api)

	r := gin.Default()
	r.POST("/login", h.LoginHandler)

	auth := r.Group("/", h.AuthMiddleware())
	{
		auth.GET("/events", sse.ServeSSE)
		auth.POST("/logout", h.LogoutHandler)
		auth.GET("/api/profile", h.ProfileHandler)

		auth.POST("/api/video/tasks", h.SubmitVideoHandler)
		auth.GET("/api/video/tasks", h.ListVideoTasksHandler)
		auth.DELETE("/api/video/tasks", h.ClearVideoTasksHandler)
		auth.POST("/api/video/tasks/:record_id/retry", h.RetryVideoHandler)
		auth.POST("/api/video/batch", h.BatchVideoHandler)

		auth.POST("/api/image/tasks", h.GenerateImageHandler)
		auth.GET("/api/image/tasks", h.ListImageTasksHandler)
		auth.DELETE("/api/image/tasks", h.ClearImageTasksHandler)

		auth.GET("/api/chat/sessions", h.ListChatSessionsHandler)
		auth.POST("/api/chat/sessions", h.CreateChatSessionHandler)
		auth.DELETE("/api/chat/sessions/:session_id", h.DeleteChatSessionHandler)
		auth.PUT("/api/chat/sessions/:session_id", h.RenameChatSessionHandler)
		auth.PUT("/api/chat/current", h.SwitchChatSessionHandler)
		auth.GET("/api/chat/messages", h.GetChatMessagesHandler)
		auth.POST("/api/chat/messages", h.SendChatMessageHandler)
		auth.POST("/api/chat/extract", h.ExtractHandler)
		auth.GET("/api/chat/pending", h.PendingPromptsHandler)
		auth.DELETE("/api/chat/pending", h.CancelPendingHandler)

		admin := auth.Group("/api/admin", h.AdminOnly())
		{
			admin.GET("/records", h.AdminRecordsHandler)
			admin.GET("/quotas", h.AdminQuotasGetHandler)
			admin.PUT("/quotas", h.AdminQuotasPutHandler)
			admin.POST("/init", h.AdminInitHandler)
			admin.GET("/actions", h.AdminActionsHandler)
		}
	}

	r.Run()
}
