package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"mediastream/internal/media"
	"mediastream/services/streaming"
)

// Storage backends.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// Settings is the process configuration. It is read once at startup and
// never mutated afterwards.
type Settings struct {
	Addr              string        `mapstructure:"APP_ADDR"`
	MBToStream        int           `mapstructure:"MB_TO_STREAM"`
	StreamTimeout     time.Duration `mapstructure:"STREAM_TIMEOUT"`
	MaxBytesPerSecond int64         `mapstructure:"STREAM_MAX_BYTES_PER_SEC"`
	HonorClientEnd    bool          `mapstructure:"STREAM_HONOR_CLIENT_END"`
	MaxConns          int           `mapstructure:"MAX_CONNS"`

	// --- storage ---
	StorageBackend string `mapstructure:"STORAGE_BACKEND"`
	MediaRoot      string `mapstructure:"MEDIA_ROOT"`
	S3Endpoint     string `mapstructure:"S3_ENDPOINT"`
	S3Region       string `mapstructure:"S3_REGION"`
	S3Bucket       string `mapstructure:"S3_BUCKET"`
	S3AccessKey    string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey    string `mapstructure:"S3_SECRET_KEY"`
	S3UseSSL       bool   `mapstructure:"S3_USE_SSL"`

	// --- catalog ---
	CatalogDB    string `mapstructure:"CATALOG_DB"`
	CatalogWatch bool   `mapstructure:"CATALOG_WATCH"`

	// --- observability ---
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogFile     string `mapstructure:"LOG_FILE"`
	AccessLog   string `mapstructure:"ACCESS_LOG"`
	MetricsAddr string `mapstructure:"METRICS_ADDR"`

	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

var defaults = map[string]any{
	"APP_ADDR":                 ":8080",
	"MB_TO_STREAM":             1,
	"STREAM_TIMEOUT":           "30m",
	"STREAM_MAX_BYTES_PER_SEC": 0,
	"STREAM_HONOR_CLIENT_END":  false,
	"MAX_CONNS":                0,
	"STORAGE_BACKEND":          BackendFS,
	"MEDIA_ROOT":               "./media",
	"S3_ENDPOINT":              "",
	"S3_REGION":                "",
	"S3_BUCKET":                "",
	"S3_ACCESS_KEY":            "",
	"S3_SECRET_KEY":            "",
	"S3_USE_SSL":               true,
	"CATALOG_DB":               "",
	"CATALOG_WATCH":            false,
	"LOG_LEVEL":                "info",
	"LOG_FILE":                 "",
	"ACCESS_LOG":               "",
	"METRICS_ADDR":             "",
	"SHUTDOWN_TIMEOUT":         "10s",
}

// Load reads envFile when it exists, then the process environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (Settings, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Settings{}, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
		_ = v.BindEnv(key)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("unable to decode config: %w", err)
	}
	s.StorageBackend = strings.ToLower(strings.TrimSpace(s.StorageBackend))
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate reports the first invalid setting.
func (s Settings) Validate() error {
	if s.MBToStream < 1 {
		return fmt.Errorf("MB_TO_STREAM must be at least 1, got %d", s.MBToStream)
	}
	if s.StreamTimeout < 0 {
		return errors.New("STREAM_TIMEOUT must not be negative")
	}
	if s.MaxBytesPerSecond < 0 {
		return errors.New("STREAM_MAX_BYTES_PER_SEC must not be negative")
	}
	if s.MaxConns < 0 {
		return errors.New("MAX_CONNS must not be negative")
	}
	switch s.StorageBackend {
	case BackendFS:
		if strings.TrimSpace(s.MediaRoot) == "" {
			return errors.New("MEDIA_ROOT is required for the fs backend")
		}
	case BackendS3:
		if s.S3Endpoint == "" || s.S3Bucket == "" {
			return errors.New("S3_ENDPOINT and S3_BUCKET are required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", s.StorageBackend)
	}
	if s.CatalogWatch && s.CatalogDB == "" {
		return errors.New("CATALOG_WATCH requires CATALOG_DB")
	}
	if s.CatalogWatch && s.StorageBackend != BackendFS {
		return errors.New("CATALOG_WATCH is only supported with the fs backend")
	}
	return nil
}

// ChunkSizeBytes is the window size for ranged responses.
func (s Settings) ChunkSizeBytes() int64 {
	return int64(s.MBToStream) << 20
}

// StreamingConfig derives the streaming service configuration.
func (s Settings) StreamingConfig() streaming.Config {
	return streaming.Config{
		ChunkSizeBytes:    s.ChunkSizeBytes(),
		HonorClientEnd:    s.HonorClientEnd,
		MaxBytesPerSecond: s.MaxBytesPerSecond,
	}
}

// ObjectStoreConfig derives the S3 client configuration.
func (s Settings) ObjectStoreConfig() media.ObjectStoreConfig {
	return media.ObjectStoreConfig{
		Endpoint:  s.S3Endpoint,
		Region:    s.S3Region,
		Bucket:    s.S3Bucket,
		AccessKey: s.S3AccessKey,
		SecretKey: s.S3SecretKey,
		UseSSL:    s.S3UseSSL,
	}
}

func mask(secret string) string {
	if secret == "" {
		return "(empty)"
	}
	return "********"
}

// String renders the settings with secrets masked.
func (s Settings) String() string {
	var sb strings.Builder
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  Addr: %s\n", s.Addr)
	fmt.Fprintf(&sb, "  MBToStream: %d\n", s.MBToStream)
	fmt.Fprintf(&sb, "  StreamTimeout: %s\n", s.StreamTimeout)
	fmt.Fprintf(&sb, "  MaxBytesPerSecond: %d\n", s.MaxBytesPerSecond)
	fmt.Fprintf(&sb, "  HonorClientEnd: %v\n", s.HonorClientEnd)
	fmt.Fprintf(&sb, "  MaxConns: %d\n", s.MaxConns)
	fmt.Fprintf(&sb, "  StorageBackend: %s\n", s.StorageBackend)
	fmt.Fprintf(&sb, "  MediaRoot: %s\n", s.MediaRoot)
	fmt.Fprintf(&sb, "  S3Endpoint: %s\n", s.S3Endpoint)
	fmt.Fprintf(&sb, "  S3Region: %s\n", s.S3Region)
	fmt.Fprintf(&sb, "  S3Bucket: %s\n", s.S3Bucket)
	fmt.Fprintf(&sb, "  S3AccessKey: %s\n", mask(s.S3AccessKey))
	fmt.Fprintf(&sb, "  S3SecretKey: %s\n", mask(s.S3SecretKey))
	fmt.Fprintf(&sb, "  S3UseSSL: %v\n", s.S3UseSSL)
	fmt.Fprintf(&sb, "  CatalogDB: %s\n", s.CatalogDB)
	fmt.Fprintf(&sb, "  CatalogWatch: %v\n", s.CatalogWatch)
	fmt.Fprintf(&sb, "  LogLevel: %s\n", s.LogLevel)
	fmt.Fprintf(&sb, "  LogFile: %s\n", s.LogFile)
	fmt.Fprintf(&sb, "  AccessLog: %s\n", s.AccessLog)
	fmt.Fprintf(&sb, "  MetricsAddr: %s\n", s.MetricsAddr)
	fmt.Fprintf(&sb, "  ShutdownTimeout: %s\n", s.ShutdownTimeout)
	return sb.String()
}
