// Package wire 提供手工装配的依赖注入
package wire

import (
	"context"
	"fmt"

	"course-rag-api/internal/application/chat"
	"course-rag-api/internal/application/ingest"
	"course-rag-api/internal/application/retrieval"
	"course-rag-api/internal/application/session"
	"course-rag-api/internal/config"
	"course-rag-api/internal/infrastructure/embedding"
	"course-rag-api/internal/infrastructure/llm"
	"course-rag-api/internal/infrastructure/persistence/milvus"
	"course-rag-api/internal/infrastructure/persistence/redis"
	"course-rag-api/internal/interfaces/http/handler"
	"course-rag-api/internal/interfaces/http/middleware"
	"course-rag-api/internal/interfaces/http/router"
	"course-rag-api/pkg/logger"
)

// App 应用依赖容器
type App struct {
	Router   *router.Router
	Ingestor *ingest.Ingestor
	Engine   *retrieval.Engine
	Sessions *session.Store

	MilvusClient *milvus.Client
	RedisClient  *redis.Client
}

// Ingestion 摄取依赖容器（用于 bootstrap 等一次性任务）
type Ingestion struct {
	Ingestor   *ingest.Ingestor
	VectorRepo *milvus.Repository

	MilvusClient *milvus.Client
}

// InitializeApp 初始化整个应用（带路由器），返回清理函数
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化 Milvus 客户端失败: %w", err)
	}
	cleanup := func() {
		milvusClient.Close()
	}

	// Redis 仅用于限流，可选
	var redisClient *redis.Client
	var rateLimiter middleware.RateLimiter
	if cfg.Cache.Redis.Enabled {
		redisClient, err = redis.NewClient(&cfg.Cache.Redis)
		if err != nil {
			// Redis 故障不阻塞启动，限流降级为直通
			logger.Warn(ctx, "Redis 连接失败，限流功能不可用", "error", err.Error())
		} else {
			rateLimiter = redis.NewRateLimiter(redisClient)
			prev := cleanup
			cleanup = func() {
				redisClient.Close()
				prev()
			}
		}
	}

	embedder, err := embedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("初始化 Embedding 客户端失败: %w", err)
	}

	llmFactory := llm.NewEinoFactory(cfg)
	chatModel, err := llmFactory.Default(ctx)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("初始化 LLM 模型失败: %w", err)
	}

	vectorRepo := milvus.NewRepository(milvusClient)
	vectorPort := milvus.NewRetrievalVectorRepository(vectorRepo)

	engine := retrieval.NewEngine(embedder, vectorPort, cfg.RAG.MaxResults)
	ingestor := ingest.NewIngestor(embedder, vectorPort, &cfg.RAG, cfg.Embedding.BatchSize)
	sessions := session.NewStore(cfg.RAG.MaxHistoryTurns)

	searchTool := chat.NewSearchCourseTool(engine)
	orchestrator := chat.NewOrchestrator(chatModel, searchTool, sessions)

	handlers := router.Handlers{
		Chat:    handler.NewChatHandler(orchestrator, sessions),
		Course:  handler.NewCourseHandler(engine),
		Session: handler.NewSessionHandler(sessions),
		Health:  handler.NewHealthHandler(milvusClient, redisClient),
	}

	app := &App{
		Router:       router.New(cfg, handlers, rateLimiter),
		Ingestor:     ingestor,
		Engine:       engine,
		Sessions:     sessions,
		MilvusClient: milvusClient,
		RedisClient:  redisClient,
	}
	return app, cleanup, nil
}

// InitializeIngestion 初始化摄取链路（不含 HTTP 层），返回清理函数
func InitializeIngestion(ctx context.Context, cfg *config.Config) (*Ingestion, func(), error) {
	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化 Milvus 客户端失败: %w", err)
	}
	cleanup := func() {
		milvusClient.Close()
	}

	embedder, err := embedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("初始化 Embedding 客户端失败: %w", err)
	}

	vectorRepo := milvus.NewRepository(milvusClient)
	vectorPort := milvus.NewRetrievalVectorRepository(vectorRepo)
	ingestor := ingest.NewIngestor(embedder, vectorPort, &cfg.RAG, cfg.Embedding.BatchSize)

	return &Ingestion{
		Ingestor:     ingestor,
		VectorRepo:   vectorRepo,
		MilvusClient: milvusClient,
	}, cleanup, nil
}
