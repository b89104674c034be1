package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by DB_BACKEND and STORAGE_BACKEND.
const (
	BackendMySQL  = "mysql"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"

	StorageMinio  = "minio"
	StorageGridFS = "gridfs"
)

// Config stores the application configuration.
type Config struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	DBBackend  string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBLogSQL   bool
	SQLitePath string

	MongoURI      string
	MongoDatabase string

	StorageBackend string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool
	PublicBaseURL  string // prefix for public object URLs, e.g. https://cdn.example.com

	ImageMaxBytes   int64
	AudioMaxBytes   int64
	UploadListLimit int

	JWTSecret    string
	JWTTTL       time.Duration
	AuthRequired bool

	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("30s", "24h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
// godotenv.Load does not override variables that are already set.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	return &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":3001"),
		ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 60*time.Second),
		WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		DBBackend:  strings.ToLower(getEnv("DB_BACKEND", BackendMySQL)),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "beatmarket"),
		DBLogSQL:   getEnvBool("DB_LOG_SQL", false),
		SQLitePath: getEnv("SQLITE_PATH", "beatmarket.db"),

		MongoURI:      getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "beatmarket"),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageMinio)),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "uploads"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		PublicBaseURL:  strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),

		ImageMaxBytes:   getEnvInt64("UPLOAD_IMAGE_MAX_BYTES", 10<<20),
		AudioMaxBytes:   getEnvInt64("UPLOAD_AUDIO_MAX_BYTES", 50<<20),
		UploadListLimit: getEnvInt("UPLOAD_LIST_LIMIT", 100),

		JWTSecret:    getEnv("JWT_SECRET", "change-me"),
		JWTTTL:       getEnvDuration("JWT_TTL", 24*time.Hour),
		AuthRequired: getEnvBool("AUTH_REQUIRED", false),

		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:       os.Getenv("LOG_FILE"),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}

// MaxBodyBytes bounds request bodies. A track upload carries one audio file
// and one image, plus form fields.
func (c *Config) MaxBodyBytes() int64 {
	return c.AudioMaxBytes + c.ImageMaxBytes + 1<<20
}
