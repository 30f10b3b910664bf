package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort      string
	FirebaseProject string
	FirebaseApiKey  string
	Environment     string

	// Image upload provider: "cloudinary" or "gcs"
	StorageProvider string

	CloudinaryCloudName    string
	CloudinaryUploadPreset string
	CloudinaryApiKey       string

	StorageBucket string

	ImageCacheDir string
	ImageCacheTTL time.Duration
	ImageMaxBytes int
	UploadTimeout time.Duration
	QueryTimeout  time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		FirebaseProject: getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseApiKey:  getEnv("FIREBASE_API_KEY", ""),
		Environment:     getEnv("ENVIRONMENT", "development"),

		StorageProvider: getEnv("STORAGE_PROVIDER", "cloudinary"),

		CloudinaryCloudName:    getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryUploadPreset: getEnv("CLOUDINARY_UPLOAD_PRESET", ""),
		CloudinaryApiKey:       getEnv("CLOUDINARY_API_KEY", ""),

		StorageBucket: getEnv("STORAGE_BUCKET", ""),

		ImageCacheDir: getEnv("IMAGE_CACHE_DIR", "./data/chat_images"),
		ImageCacheTTL: getEnvAsDuration("IMAGE_CACHE_TTL", 7*24*time.Hour),
		ImageMaxBytes: getEnvAsInt("IMAGE_MAX_KB", 800) * 1024,
		UploadTimeout: getEnvAsDuration("UPLOAD_TIMEOUT", 30*time.Second),
		QueryTimeout:  getEnvAsDuration("QUERY_TIMEOUT", 10*time.Second),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
