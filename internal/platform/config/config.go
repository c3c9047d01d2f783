package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`

	BotToken string  `env:"BOT_TOKEN"`
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	MediaDir     string `env:"MEDIA_DIR" envDefault:"./media"`
	AudioQuality string `env:"AUDIO_QUALITY" envDefault:"64"`

	MaxAudioSize int64 `env:"MAX_AUDIO_SIZE" envDefault:"50000000"`
	MaxVideoAge  int   `env:"MAX_VIDEO_AGE_DAYS" envDefault:"1400"`

	PublishInterval time.Duration `env:"PUBLISH_INTERVAL" envDefault:"4h"`
	PostInterval    time.Duration `env:"POST_INTERVAL" envDefault:"30s"`
	ProcessInterval time.Duration `env:"PROCESS_INTERVAL" envDefault:"20s"`
	IngestInterval  time.Duration `env:"INGEST_INTERVAL" envDefault:"1h"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"6h"`

	ToolTimeout     time.Duration `env:"TOOL_TIMEOUT" envDefault:"15m"`
	TelegramTimeout time.Duration `env:"TELEGRAM_TIMEOUT" envDefault:"5m"`
	ThumbFetchRPS   float64       `env:"THUMB_FETCH_RPS" envDefault:"2"`
	ThumbFetchWait  time.Duration `env:"THUMB_FETCH_TIMEOUT" envDefault:"30s"`
	MaxFailedPosts  int           `env:"MAX_FAILED_POSTS" envDefault:"3"`
	HealthPort      int           `env:"HEALTH_PORT" envDefault:"8080"`
	DBMaxConns      int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	DBMinConns      int32         `env:"DB_MIN_CONNECTIONS" envDefault:"1"`
	DBMaxConnIdle   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBMaxConnLife   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthPeriod  time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
