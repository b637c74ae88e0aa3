package config

import (
	"fmt"
	"log/slog"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3200"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	APIKey   string `envconfig:"API_KEY" required:"true"`
}

type DBEnv struct {
	Path string `envconfig:"DB_PATH" default:".focusdeck/focusdeck.db"`
}

type JournalEnv struct {
	Enabled bool   `envconfig:"JOURNAL_ENABLED" default:"true"`
	Type    string `envconfig:"JOURNAL_TYPE" default:"local"`
	BaseDir string `envconfig:"JOURNAL_BASE_DIR" default:".focusdeck/journal"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"JOURNAL_S3_BUCKET"`
	S3Prefix string `envconfig:"JOURNAL_S3_PREFIX" default:"focusdeck/journal/"`
	S3Region string `envconfig:"JOURNAL_S3_REGION" default:"us-east-1"`
}

type VAPIDEnv struct {
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDContact    string `envconfig:"VAPID_CONTACT" default:"mailto:ops@focusdeck.dev"`
}

type RosterEnv struct {
	Path string `envconfig:"ROSTER_PATH"`
}

type Env struct {
	BaseEnv
	DBEnv
	JournalEnv
	VAPIDEnv
	RosterEnv
}

const namespace = "FOCUSDECK"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

func VAPIDEnvFromEnv(env *Env) *VAPIDEnv {
	return &env.VAPIDEnv
}
