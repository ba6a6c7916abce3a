// Package config loads engine configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Config carries every tunable of the indexing engine. Defaults match the
// reference pipeline behavior; env vars override.
type Config struct {
	LogLevel string
	Port     int

	// Capture
	PollInterval        time.Duration
	GridCols            int
	GridRows            int
	SimilarityThreshold float64 // mean abs per-channel diff, 0-255 scale
	DarknessThreshold   float64 // cell luminance below this counts as dark
	BlackCellRatio      float64 // fraction of dark cells that marks a black frame

	// Workers
	ModelHubURL       string
	CaptionEndpoint   string
	SpeechEndpoint    string
	DefaultVoice      string
	WorkerCallTimeout time.Duration

	// Media
	FFmpegPath  string
	FFprobePath string
	FrameSize   int
	IndexRate   float64 // playback speed multiplier while indexing
	ModelCache  string

	// Storage
	UploadDir     string
	MaxUploadSize int64
	DBPath        string

	// Object storage handoff (optional)
	CloudType      string // "", "minio" or "s3"
	CloudEndpoint  string
	CloudAccessKey string
	CloudSecretKey string
	CloudBucket    string
	CloudRegion    string

	// Events (optional)
	AmqpURL    string
	EventQueue string
}

// Load reads the configuration. A missing .env file is not an error.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("Could not load the .env file")
	}

	c := Config{}
	c.LogLevel = cast.ToString(getOrReturnDefault("LOG_LEVEL", "info"))
	c.Port = cast.ToInt(getOrReturnDefault("PORT", 8080))

	c.PollInterval = time.Duration(cast.ToInt(getOrReturnDefault("POLL_INTERVAL_MS", 500))) * time.Millisecond
	c.GridCols = cast.ToInt(getOrReturnDefault("GRID_COLS", 8))
	c.GridRows = cast.ToInt(getOrReturnDefault("GRID_ROWS", 4))
	c.SimilarityThreshold = cast.ToFloat64(getOrReturnDefault("SIMILARITY_THRESHOLD", 25.0))
	c.DarknessThreshold = cast.ToFloat64(getOrReturnDefault("DARKNESS_THRESHOLD", 30.0))
	c.BlackCellRatio = cast.ToFloat64(getOrReturnDefault("BLACK_CELL_RATIO", 0.9))

	c.ModelHubURL = cast.ToString(getOrReturnDefault("MODEL_HUB_URL", "https://huggingface.co"))
	c.CaptionEndpoint = cast.ToString(getOrReturnDefault("CAPTION_ENDPOINT", "http://localhost:9090"))
	c.SpeechEndpoint = cast.ToString(getOrReturnDefault("SPEECH_ENDPOINT", "http://localhost:9091"))
	c.DefaultVoice = cast.ToString(getOrReturnDefault("DEFAULT_VOICE", "af_nicole"))
	c.WorkerCallTimeout = time.Duration(cast.ToInt(getOrReturnDefault("WORKER_CALL_TIMEOUT_S", 120))) * time.Second

	c.FFmpegPath = cast.ToString(getOrReturnDefault("FFMPEG", "ffmpeg"))
	c.FFprobePath = cast.ToString(getOrReturnDefault("FFPROBE", "ffprobe"))
	c.FrameSize = cast.ToInt(getOrReturnDefault("FRAME_SIZE", 512))
	c.IndexRate = cast.ToFloat64(getOrReturnDefault("INDEX_RATE", 1.0))
	c.ModelCache = cast.ToString(getOrReturnDefault("MODEL_CACHE", "./models-cache"))

	c.UploadDir = cast.ToString(getOrReturnDefault("UPLOAD_DIR", "./uploads"))
	c.MaxUploadSize = cast.ToInt64(getOrReturnDefault("MAX_UPLOAD_SIZE", 104857600))
	c.DBPath = cast.ToString(getOrReturnDefault("DB_PATH", "./vidrune.db"))

	c.CloudType = cast.ToString(getOrReturnDefault("CLOUD_TYPE", ""))
	c.CloudEndpoint = cast.ToString(getOrReturnDefault("CLOUD_ENDPOINT", ""))
	c.CloudAccessKey = cast.ToString(getOrReturnDefault("CLOUD_ACCESS_KEY", ""))
	c.CloudSecretKey = cast.ToString(getOrReturnDefault("CLOUD_SECRET_KEY", ""))
	c.CloudBucket = cast.ToString(getOrReturnDefault("CLOUD_BUCKET", "vidrune-artifacts"))
	c.CloudRegion = cast.ToString(getOrReturnDefault("CLOUD_REGION", "us-east-1"))

	c.AmqpURL = cast.ToString(getOrReturnDefault("AMQP_URL", ""))
	c.EventQueue = cast.ToString(getOrReturnDefault("EVENT_QUEUE", "index_status"))

	return c
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	if _, exists := os.LookupEnv(key); exists {
		return os.Getenv(key)
	}
	return defaultValue
}
