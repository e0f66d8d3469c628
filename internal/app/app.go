package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/furnish-tech/reco-backend/internal/cfg"
	v1Http "github.com/furnish-tech/reco-backend/internal/delivery/v1/http"
	"github.com/furnish-tech/reco-backend/internal/domain"
	kafkaInfra "github.com/furnish-tech/reco-backend/internal/infrastructure/kafka"
	minioInfra "github.com/furnish-tech/reco-backend/internal/infrastructure/minio"
	ml_service "github.com/furnish-tech/reco-backend/internal/infrastructure/ml-service"
	rerankerInfra "github.com/furnish-tech/reco-backend/internal/infrastructure/reranker"
	"github.com/furnish-tech/reco-backend/internal/repository/cache"
	"github.com/furnish-tech/reco-backend/internal/repository/memory"
	s3Repo "github.com/furnish-tech/reco-backend/internal/repository/minio"
	"github.com/furnish-tech/reco-backend/internal/repository/pgdb"
	pgdbConv "github.com/furnish-tech/reco-backend/internal/repository/pgdb/converter"
	qdrantRepo "github.com/furnish-tech/reco-backend/internal/repository/qdrant"
	redisRepo "github.com/furnish-tech/reco-backend/internal/repository/redis"
	"github.com/furnish-tech/reco-backend/internal/usecase"
	"github.com/furnish-tech/reco-backend/pkg/clients"
	"github.com/furnish-tech/reco-backend/pkg/closer"
	"github.com/furnish-tech/reco-backend/pkg/logger"
	"github.com/furnish-tech/reco-backend/pkg/postgres"
	"github.com/go-chi/chi/v5"
)

const initTimeout = 10 * time.Second

// App собирает зависимости сервиса рекомендаций и управляет их жизненным циклом.
type App struct {
	cfg      *config.Config
	logger   logger.Logger
	closer   *closer.Closer
	httpSrv  *v1Http.Server
	consumer *kafkaInfra.CatalogConsumer
}

func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	cl := closer.NewCloser(0)

	db, err := postgres.Connect(cfg.Db)
	if err != nil {
		return nil, err
	}
	cl.Add(func(ctx context.Context) error {
		db.Close()
		return nil
	})

	if err := db.RunMigrations(log); err != nil {
		return nil, err
	}

	productRepo := pgdb.NewProductRepo(db.Pool, pgdbConv.NewProductConverter())
	embeddingRepo := pgdb.NewEmbeddingRepo(db.Pool, pgdbConv.NewEmbeddingConverter())

	catalogCtx, catalogCancel := context.WithTimeout(context.Background(), 30*time.Second)
	products, err := productRepo.LoadCatalog(catalogCtx)
	catalogCancel()
	if err != nil {
		return nil, err
	}

	catalog := domain.NewCatalog(products)
	log.Infof("catalog loaded: %d products", catalog.Len())

	index, err := selectIndexBackend(cfg, embeddingRepo, log)
	if err != nil {
		return nil, err
	}
	log.Infof("vector index backend selected: %s", index.Backend())

	redisClient := clients.NewRedisClient(cfg.Redis)
	redisCtx, redisCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = redisClient.Ping(redisCtx)
	redisCancel()
	if err != nil {
		return nil, err
	}
	cl.Add(func(ctx context.Context) error {
		return redisClient.Client.Close()
	})

	embCache := redisRepo.NewEmbeddingCache(redisClient, cfg.Redis, log)

	minioClient, err := clients.NewMinIOClient(cfg.Minio)
	if err != nil {
		return nil, err
	}

	minioCtx, minioCancel := context.WithTimeout(context.Background(), initTimeout)
	err = clients.EnsureBucket(minioCtx, minioClient, cfg.Minio.BucketName)
	minioCancel()
	if err != nil {
		return nil, err
	}

	imagesInfra := minioInfra.NewImagesInfrastructure(s3Repo.NewImageRepo(minioClient, cfg.Minio), log)

	ml := ml_service.NewMLService(cfg.Ml, log)
	reranker := rerankerInfra.NewReranker(cfg.Reranker, log)
	queryCache := cache.NewQueryCache(cfg.Cache.Capacity)

	recommendUC := usecase.NewRetrievalUC(
		catalog,
		index,
		ml,
		reranker,
		imagesInfra,
		queryCache,
		embCache,
		cfg.Retrieval,
		cfg.Reranker.MaxBatch,
		log,
	)

	var consumer *kafkaInfra.CatalogConsumer
	if len(cfg.Kafka.Brokers) > 0 {
		reader := clients.NewKafkaReader(cfg.Kafka)
		consumer = kafkaInfra.NewCatalogConsumer(reader, index, recommendUC, log)
		cl.Add(func(ctx context.Context) error {
			return consumer.Stop()
		})
	} else {
		log.Infof("kafka brokers not configured, catalog consumer disabled")
	}

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, log)
	router.Init(recommendUC)

	httpSrv := v1Http.NewServer(r, cfg.Http)
	cl.Add(func(ctx context.Context) error {
		return httpSrv.Stop(ctx)
	})

	return &App{
		cfg:      cfg,
		logger:   log,
		closer:   cl,
		httpSrv:  httpSrv,
		consumer: consumer,
	}, nil
}

// Run запускает сервис и блокируется до сигнала остановки или фатальной ошибки.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.consumer != nil {
		a.consumer.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Errorf(err, "HTTP server failed")
			errCh <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "HTTP server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), initTimeout)
	defer shutdownCancel()

	if err := a.closer.Close(shutdownCtx); err != nil {
		a.logger.Errorf(err, "shutdown finished with errors")
		if appErr == nil {
			appErr = err
		}
	} else {
		a.logger.Infof("shutdown complete")
	}

	return appErr
}

// selectIndexBackend выбирает бэкенд векторного индекса один раз при старте.
// Предпочитается удалённый Qdrant; при его отсутствии или недоступности
// поднимается локальный индекс, прогретый векторами каталога из PostgreSQL.
func selectIndexBackend(cfg *config.Config, embeddingRepo usecase.StoredEmbeddingRepository,
	log logger.Logger) (usecase.VectorIndex, error) {
	if cfg.Qdrant.Host != "" {
		qdrantClient, err := clients.NewQdrantClient(cfg.Qdrant)
		if err != nil {
			log.Warnf("qdrant client init failed, falling back to local index: %v", err)
			return warmLocalIndex(cfg, embeddingRepo, log)
		}

		qdrantCtx, qdrantCancel := context.WithTimeout(context.Background(), initTimeout)
		err = clients.EnsureCollections(qdrantCtx, qdrantClient)
		qdrantCancel()
		if err != nil {
			log.Warnf("qdrant unreachable, falling back to local index: %v", err)
			return warmLocalIndex(cfg, embeddingRepo, log)
		}

		return qdrantRepo.NewVectorRepo(qdrantClient, cfg.Qdrant), nil
	}

	log.Infof("qdrant host not configured, using local index")
	return warmLocalIndex(cfg, embeddingRepo, log)
}

// warmLocalIndex строит локальный индекс из сохранённых векторов каталога.
func warmLocalIndex(cfg *config.Config, embeddingRepo usecase.StoredEmbeddingRepository,
	log logger.Logger) (usecase.VectorIndex, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	embeddings, err := embeddingRepo.LoadEmbeddings(ctx)
	if err != nil {
		return nil, err
	}

	index := memory.NewVectorRepo(cfg.Qdrant)
	if err := index.Upsert(ctx, embeddings); err != nil {
		return nil, err
	}

	log.Infof("local index warmed: %d vectors", len(embeddings))
	return index, nil
}
