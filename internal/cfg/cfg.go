package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/furnish-tech/reco-backend/pkg/e"
	"github.com/furnish-tech/reco-backend/pkg/logger"
	"github.com/jimlawless/whereami"
)

type Config struct {
	Http      *HTTPConfig
	Db        *PGDBCfg
	Qdrant    *QdrantCfg
	Redis     *RedisCfg
	Minio     *MinIOCfg
	Kafka     *KafkaCfg
	Ml        *MLServiceCfg
	Reranker  *RerankerCfg
	Retrieval *RetrievalCfg
	Cache     *CacheCfg
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PGDBCfg struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type QdrantCfg struct {
	Host   string // пустой Host означает, что удалённый бэкенд не сконфигурирован
	Port   int
	ApiKey string
	UseTLS bool
	// Коллекции разнесены по модальностям: <prefix>_text и <prefix>_image
	CollectionPrefix string
	TextVectorSize   uint64
	ImageVectorSize  uint64
}

type RedisCfg struct {
	Addr         string
	Password     string
	User         string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	Timeout      time.Duration
	EmbeddingTTL time.Duration
}

type MinIOCfg struct {
	MinioEndpoint     string // Адрес конечной точки Minio
	BucketName        string // Бакет с загруженными пользователями изображениями
	MinioRootUser     string
	MinioRootPassword string
	MinioUseSSL       bool
}

type KafkaCfg struct {
	Brokers     []string // пустой список отключает подписку на события каталога
	Topic       string
	GroupID     string
	NetworkMode string
}

type MLServiceCfg struct {
	BaseURL       string // пустой BaseURL означает, что провайдер эмбеддингов не сконфигурирован
	MaxConcurrent int
	MaxRetries    int
	Timeout       time.Duration
}

type RerankerCfg struct {
	BaseURL  string
	ApiKey   string
	Model    string
	Enabled  bool
	MaxBatch int
	Timeout  time.Duration
}

// RetrievalCfg задаёт параметры гибридного пайплайна поиска.
type RetrievalCfg struct {
	KMin            int
	KMax            int
	DefaultK        int
	DefaultPageSize int
	MaxPageSize     int
	MaxQueryLen     int
	PoolSize        int     // размер пула кандидатов ANN до фильтрации и реранка
	TextWeight      float64 // веса объединения text/image при гибридном запросе
	ImageWeight     float64
	MMRLambda       float64 // баланс релевантность/разнообразие в MMR
	EmbedTimeout    time.Duration
	SearchTimeout   time.Duration
	RerankTimeout   time.Duration
}

type CacheCfg struct {
	Capacity int // максимум записей в LRU-кэше запросов
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	db, err := loadPGDBCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	retrieval, err := loadRetrievalCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	cache, err := loadCacheCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Http:      http,
		Db:        db,
		Qdrant:    qdrant,
		Redis:     redis,
		Minio:     minio,
		Kafka:     loadKafkaCfg(),
		Ml:        loadMLServiceCfg(),
		Reranker:  loadRerankerCfg(),
		Retrieval: retrieval,
		Cache:     cache,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 5 * time.Second
		defaultWriteTimeout = 30 * time.Second
		defaultIdleTimeout  = 60 * time.Second
	)

	port := getEnvOrDefault("HTTP_PORT", defaultPort)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	return &HTTPConfig{
		Port:         port,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}, nil
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost    = "localhost"
		defaultPort    = "5432"
		defaultSSLMode = "disable"
	)

	user := getEnv("POSTGRES_USER")
	if user == "" {
		err := fmt.Errorf("POSTGRES_USER is required")
		log.Errorf(err, "missing POSTGRES_USER")
		return nil, err
	}

	password := getEnv("POSTGRES_PASSWORD")
	if password == "" {
		err := fmt.Errorf("POSTGRES_PASSWORD is required")
		log.Errorf(err, "missing POSTGRES_PASSWORD")
		return nil, err
	}

	dbName := getEnv("POSTGRES_DB")
	if dbName == "" {
		err := fmt.Errorf("POSTGRES_DB is required")
		log.Errorf(err, "missing POSTGRES_DB")
		return nil, err
	}

	return &PGDBCfg{
		Host:     getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:     getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:     user,
		Password: password,
		DBName:   dbName,
		SSLMode:  getEnvOrDefault("SSL_MODE", defaultSSLMode),
	}, nil
}

func loadQdrantCfg(log logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort = "6334"
		defaultUseTLS         = false
		defaultPrefix         = "furniture"
		defaultTextVectorSize = "384"
		defaultImgVectorSize  = "512"
	)

	strPort := getEnvOrDefault("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	port, err := strconv.Atoi(strPort)
	if err != nil {
		log.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := strconv.ParseBool(getEnvOrDefault("QDRANT_USE_TLS", strconv.FormatBool(defaultUseTLS)))
	if err != nil {
		log.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	textSize, err := strconv.ParseUint(getEnvOrDefault("TEXT_VECTOR_SIZE", defaultTextVectorSize), 10, 64)
	if err != nil {
		log.Errorf(err, "invalid TEXT_VECTOR_SIZE")
		return nil, err
	}

	imageSize, err := strconv.ParseUint(getEnvOrDefault("IMAGE_VECTOR_SIZE", defaultImgVectorSize), 10, 64)
	if err != nil {
		log.Errorf(err, "invalid IMAGE_VECTOR_SIZE")
		return nil, err
	}

	return &QdrantCfg{
		Host:             getEnv("QDRANT_HOST"),
		Port:             port,
		ApiKey:           getEnv("QDRANT__SERVICE__API_KEY"),
		UseTLS:           useTLS,
		CollectionPrefix: getEnvOrDefault("COLLECTION_PREFIX", defaultPrefix),
		TextVectorSize:   textSize,
		ImageVectorSize:  imageSize,
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultEmbeddingTTL = 10 * time.Minute
	)

	addr := getEnvOrDefault("REDIS_ADDR", defaultAddr)
	password := getEnv("REDIS_PASSWORD")
	user := getEnv("REDIS_USER")

	dbStr := getEnvOrDefault("REDIS_DB_ID", strconv.Itoa(defaultDB))
	db, err := strconv.Atoi(dbStr)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid WRITE_TIMEOUT")
		return nil, err
	}

	embeddingTTL, err := parseDurationEnv("EMBEDDING_TTL", defaultEmbeddingTTL)
	if err != nil {
		log.Errorf(err, "invalid EMBEDDING_TTL")
		return nil, err
	}

	timeout := readTimeout
	if writeTimeout > timeout {
		timeout = writeTimeout
	}

	return &RedisCfg{
		Addr:         addr,
		Password:     password,
		User:         user,
		DB:           db,
		MaxRetries:   maxRetries,
		DialTimeout:  dialTimeout,
		Timeout:      timeout,
		EmbeddingTTL: embeddingTTL,
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const defaultUseSSL = false

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	return &MinIOCfg{
		MinioEndpoint:     getEnv("MINIO_ENDPOINT"),
		BucketName:        getEnvOrDefault("BUCKET_NAME", "user-uploads"),
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
	}, nil
}

func loadKafkaCfg() *KafkaCfg {
	const (
		defaultGroupID     = "reco-backend"
		defaultNetworkMode = "tcp"
	)

	var brokers []string
	if brokerStr := getEnv("KAFKA_BROKERS"); brokerStr != "" {
		brokers = strings.Split(brokerStr, ",")
	}

	return &KafkaCfg{
		Brokers:     brokers,
		Topic:       getEnvOrDefault("KAFKA_TOPIC", "catalog-events"),
		GroupID:     getEnvOrDefault("KAFKA_GROUP_ID", defaultGroupID),
		NetworkMode: getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
	}
}

func loadMLServiceCfg() *MLServiceCfg {
	const (
		defaultMaxConcurrent = 8
		defaultMaxRetries    = 3
		defaultTimeout       = 10 * time.Second
	)

	return &MLServiceCfg{
		BaseURL:       getEnv("ML_BASE_URL"),
		MaxConcurrent: defaultMaxConcurrent,
		MaxRetries:    defaultMaxRetries,
		Timeout:       defaultTimeout,
	}
}

func loadRerankerCfg() *RerankerCfg {
	const (
		defaultModel    = "cross-encoder/ms-marco-MiniLM-L-6-v2"
		defaultMaxBatch = 32
		defaultTimeout  = 10 * time.Second
	)

	baseURL := getEnv("RERANKER_BASE_URL")

	return &RerankerCfg{
		BaseURL:  baseURL,
		ApiKey:   getEnv("RERANKER_API_KEY"),
		Model:    getEnvOrDefault("RERANKER_MODEL", defaultModel),
		Enabled:  baseURL != "",
		MaxBatch: defaultMaxBatch,
		Timeout:  defaultTimeout,
	}
}

func loadRetrievalCfg() (*RetrievalCfg, error) {
	const (
		defaultKMin            = 1
		defaultKMax            = 50
		defaultK               = 10
		defaultPageSize        = 8
		defaultMaxPageSize     = 20
		defaultMaxQueryLen     = 500
		defaultPoolSize        = 200
		defaultTextWeight      = 0.5
		defaultImageWeight     = 0.5
		defaultMMRLambda       = 0.7
		defaultEmbedTimeout    = 10 * time.Second
		defaultSearchTimeout   = 5 * time.Second
		defaultRerankTimeout   = 10 * time.Second
	)

	poolSize, err := parseIntEnv("RETRIEVAL_POOL_SIZE", defaultPoolSize)
	if err != nil {
		return nil, e.Wrap("RETRIEVAL_POOL_SIZE", err)
	}

	textWeight, err := parseFloatEnv("RETRIEVAL_TEXT_WEIGHT", defaultTextWeight)
	if err != nil {
		return nil, e.Wrap("RETRIEVAL_TEXT_WEIGHT", err)
	}

	imageWeight, err := parseFloatEnv("RETRIEVAL_IMAGE_WEIGHT", defaultImageWeight)
	if err != nil {
		return nil, e.Wrap("RETRIEVAL_IMAGE_WEIGHT", err)
	}

	mmrLambda, err := parseFloatEnv("RETRIEVAL_MMR_LAMBDA", defaultMMRLambda)
	if err != nil {
		return nil, e.Wrap("RETRIEVAL_MMR_LAMBDA", err)
	}

	embedTimeout, err := parseDurationEnv("RETRIEVAL_EMBED_TIMEOUT", defaultEmbedTimeout)
	if err != nil {
		return nil, e.Wrap("RETRIEVAL_EMBED_TIMEOUT", err)
	}

	searchTimeout, err := parseDurationEnv("RETRIEVAL_SEARCH_TIMEOUT", defaultSearchTimeout)
	if err != nil {
		return nil, e.Wrap("RETRIEVAL_SEARCH_TIMEOUT", err)
	}

	rerankTimeout, err := parseDurationEnv("RETRIEVAL_RERANK_TIMEOUT", defaultRerankTimeout)
	if err != nil {
		return nil, e.Wrap("RETRIEVAL_RERANK_TIMEOUT", err)
	}

	return &RetrievalCfg{
		KMin:            defaultKMin,
		KMax:            defaultKMax,
		DefaultK:        defaultK,
		DefaultPageSize: defaultPageSize,
		MaxPageSize:     defaultMaxPageSize,
		MaxQueryLen:     defaultMaxQueryLen,
		PoolSize:        poolSize,
		TextWeight:      textWeight,
		ImageWeight:     imageWeight,
		MMRLambda:       mmrLambda,
		EmbedTimeout:    embedTimeout,
		SearchTimeout:   searchTimeout,
		RerankTimeout:   rerankTimeout,
	}, nil
}

func loadCacheCfg() (*CacheCfg, error) {
	const defaultCapacity = 256

	capacity, err := parseIntEnv("QUERY_CACHE_CAPACITY", defaultCapacity)
	if err != nil {
		return nil, e.Wrap("QUERY_CACHE_CAPACITY", err)
	}

	return &CacheCfg{Capacity: capacity}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	floatValue, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return floatValue, nil
}
