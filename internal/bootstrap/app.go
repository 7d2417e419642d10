package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"medsearch/internal/cache"
	"medsearch/internal/config"
	"medsearch/internal/docstore"
	"medsearch/internal/embedding"
	"medsearch/internal/extract"
	"medsearch/internal/index"
	"medsearch/internal/ingest"
	"medsearch/internal/model"
	mysqlClient "medsearch/internal/platform/mysql"
	"medsearch/internal/platform/objectstore"
	rabbitmqClient "medsearch/internal/platform/rabbitmq"
	redisClient "medsearch/internal/platform/redis"
	"medsearch/internal/repository"
	"medsearch/internal/search"
	"medsearch/internal/segment"
	"medsearch/internal/worker"
)

// App wires the process: platform connections, the embedding model, the
// index, the search engine and the ingestion manager. Redis, RabbitMQ and
// MinIO are optional; leaving their address empty disables caching, the
// event log and report artifacts respectively.
type App struct {
	Config    *config.Config
	MySQL     *gorm.DB
	Redis     *redis.Client
	MQConn    *amqp.Connection
	Artifacts *objectstore.Client

	Embedder  embedding.Embedder
	Index     *index.Store
	Docs      docstore.Store
	Search    *search.Engine
	Ingestion *ingest.Manager

	EventWorker *worker.EventPersistWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.User{},
		&model.Document{},
		&model.Chunk{},
		&model.IngestionJob{},
		&model.IngestionEvent{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	embedder, err := embedding.New(embedding.Config{
		Provider:      cfg.Embedding.Provider,
		Dimension:     cfg.Embedding.Dimension,
		ModelPath:     cfg.Embedding.ModelPath,
		VocabPath:     cfg.Embedding.VocabPath,
		MaxSeqLen:     cfg.Embedding.MaxSeqLen,
		SharedLibPath: cfg.Embedding.ONNXSharedLibPath,
		BaseURL:       cfg.Embedding.BaseURL,
		APIKey:        cfg.Embedding.APIKey,
		Model:         cfg.Embedding.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("init embedder failed: %w", err)
	}

	indexStore := index.NewStore(mysqlDB,
		cfg.Index.RetryAttempts,
		time.Duration(cfg.Index.RetryBackoffMS)*time.Millisecond,
	)

	docs := docstore.NewGraphStore(docstore.GraphConfig{
		BaseURL:      cfg.DocStore.BaseURL,
		TenantID:     cfg.DocStore.TenantID,
		ClientID:     cfg.DocStore.ClientID,
		ClientSecret: cfg.DocStore.ClientSecret,
		SiteID:       cfg.DocStore.SiteID,
		DriveID:      cfg.DocStore.DriveID,
		Timeout:      time.Duration(cfg.DocStore.TimeoutSeconds) * time.Second,
	})

	app := &App{
		Config:    cfg,
		MySQL:     mysqlDB,
		Embedder:  embedder,
		Index:     indexStore,
		Docs:      docs,
		StartedAt: time.Now(),
	}

	deps := ingest.Deps{
		Jobs:      repository.NewJobRepository(mysqlDB),
		Events:    repository.NewEventRepository(mysqlDB),
		Docs:      docs,
		Readers:   extract.NewRegistry(cfg.Ingest.WordsPerPage),
		Segmenter: segment.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkStride),
		Embedder:  embedder,
		Index:     indexStore,
	}

	var resultCache *cache.ResultCache
	if cfg.Redis.Addr != "" {
		redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		app.Redis = redisCli
		resultCache = cache.NewResultCache(redisCli, time.Duration(cfg.Redis.SearchTTLSeconds)*time.Second)
		deps.Cache = resultCache
	}

	if cfg.RabbitMQ.URL != "" {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return nil, err
		}
		app.MQConn = mqConn
		deps.Publisher = rabbitmqClient.NewJobEventPublisher(mqConn, cfg.RabbitMQ.JobEventQueue)

		eventWorker := worker.NewEventPersistWorker(mqConn, repository.NewEventRepository(mysqlDB), cfg.RabbitMQ.JobEventQueue)
		if err := eventWorker.Start(ctx); err != nil {
			return nil, fmt.Errorf("start event worker failed: %w", err)
		}
		app.EventWorker = eventWorker
	}

	if cfg.Minio.Endpoint != "" {
		artifacts, err := objectstore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.Bucket,
			cfg.Minio.UseSSL,
			time.Duration(cfg.Minio.PresignExpireMinute)*time.Minute,
		)
		if err != nil {
			return nil, err
		}
		app.Artifacts = artifacts
		deps.Artifacts = artifacts
	}

	app.Search = search.NewEngine(indexStore, embedder, resultCache, cfg.Search.MaxTopK)
	app.Ingestion = ingest.NewManager(deps, ingest.Config{
		Workers:        cfg.Ingest.Workers,
		QueueSize:      cfg.Ingest.QueueSize,
		EmbedBatchSize: cfg.Ingest.EmbedBatch,
		RetryAttempts:  cfg.Index.RetryAttempts,
		RetryBackoff:   time.Duration(cfg.Index.RetryBackoffMS) * time.Millisecond,
	})

	return app, nil
}

// Close drains in-flight ingestion jobs before tearing down the connections
// they write through.
func (a *App) Close() error {
	var closeErr error
	if a.Ingestion != nil {
		a.Ingestion.Close()
	}
	if a.EventWorker != nil {
		a.EventWorker.Close()
	}
	if closer, ok := a.Embedder.(interface{ Close() }); ok {
		closer.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
