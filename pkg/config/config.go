package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Scan      ScanConfig
	XRef      XRefConfig
	Scoring   ScoringConfig
	Scheduler SchedulerConfig
	Digest    DigestConfig
	Analytics AnalyticsConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

type ScanConfig struct {
	BaseURL        string
	APIKey         string
	TimeoutSec     int
	RequestsPerMin int
}

type XRefConfig struct {
	BaseURL    string
	APIKey     string
	MaxResults int
	TimeoutSec int
}

// ScoringConfig holds the verifier coefficients and strength cutoffs.
// The defaults encode the tuned production values; all of them are
// overridable so operators never have to patch code to recalibrate.
type ScoringConfig struct {
	BaseConfidence     float64
	CompletenessWeight float64
	ContactWeight      float64
	CrossRefWeight     float64
	RedFlagPenalty     float64
	CrossRefSaturation int
	HighStrengthCutoff float64
	MedStrengthCutoff  float64
	FreshnessDecayDays int
}

type SchedulerConfig struct {
	Workers             int
	PollIntervalSec     int
	RunTimeoutSec       int
	HealthWindow        int
	DegradedErrorRate   float64
	IngestConcurrency   int
}

type DigestConfig struct {
	HighlightCount int
	CacheTTLSec    int
	AlertRecipient string
}

type AnalyticsConfig struct {
	OpportunityLimit int
	DossierSignalCap int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/marketscout")

	viper.SetEnvPrefix("MARKETSCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/marketscout.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.enabled", false)

	viper.SetDefault("scan.baseURL", "http://localhost:9001")
	viper.SetDefault("scan.timeoutSec", 30)
	viper.SetDefault("scan.requestsPerMin", 30)

	viper.SetDefault("xref.baseURL", "http://localhost:9002")
	viper.SetDefault("xref.maxResults", 10)
	viper.SetDefault("xref.timeoutSec", 10)

	viper.SetDefault("scoring.baseConfidence", 0.5)
	viper.SetDefault("scoring.completenessWeight", 0.20)
	viper.SetDefault("scoring.contactWeight", 0.15)
	viper.SetDefault("scoring.crossRefWeight", 0.15)
	viper.SetDefault("scoring.redFlagPenalty", 0.10)
	viper.SetDefault("scoring.crossRefSaturation", 5)
	viper.SetDefault("scoring.highStrengthCutoff", 0.75)
	viper.SetDefault("scoring.medStrengthCutoff", 0.45)
	viper.SetDefault("scoring.freshnessDecayDays", 30)

	viper.SetDefault("scheduler.workers", 4)
	viper.SetDefault("scheduler.pollIntervalSec", 15)
	viper.SetDefault("scheduler.runTimeoutSec", 120)
	viper.SetDefault("scheduler.healthWindow", 50)
	viper.SetDefault("scheduler.degradedErrorRate", 0.25)
	viper.SetDefault("scheduler.ingestConcurrency", 8)

	viper.SetDefault("digest.highlightCount", 5)
	viper.SetDefault("digest.cacheTTLSec", 300)
	viper.SetDefault("digest.alertRecipient", "owner")

	viper.SetDefault("analytics.opportunityLimit", 20)
	viper.SetDefault("analytics.dossierSignalCap", 20)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
