package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"orchestrator"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	RunnerAddress  string `envconfig:"MEDIA_ORCHESTRATOR_RUNNER_ADDRESS" default:":7000"`
	MetricsAddress string `envconfig:"MEDIA_ORCHESTRATOR_METRICS_ADDRESS" default:":8080"`
	LogLevel       string `envconfig:"MEDIA_ORCHESTRATOR_LOG_LEVEL" default:"info"`

	// Jobs holds the lifecycle engine knobs.
	Jobs jobsConfig

	// StorageDir is the root of permanent media storage. Runner-produced
	// artifacts are relocated below it.
	StorageDir string `envconfig:"MEDIA_ORCHESTRATOR_STORAGE_DIR" default:"/var/lib/media-orchestrator/storage"`

	Kafka kafkaConfig

	MigrationFolder string `envconfig:"MEDIA_ORCHESTRATOR_MIGRATIONS_FOLDER" default:""`
}

type jobsConfig struct {
	// MaxFailures is the retry budget of a retriable job. Once reached, the
	// next error is terminal.
	MaxFailures int `envconfig:"MEDIA_ORCHESTRATOR_JOB_MAX_FAILURES" default:"3"`

	// TouchInterval throttles liveness-only job updates to one store write
	// per interval.
	TouchInterval time.Duration `envconfig:"MEDIA_ORCHESTRATOR_JOB_TOUCH_INTERVAL" default:"5s"`

	// CascadeLimit bounds the number of jobs visited by a single cancel or
	// error cascade. The dependency graph is shallow in practice; hitting the
	// limit indicates a defect, not load.
	CascadeLimit int `envconfig:"MEDIA_ORCHESTRATOR_JOB_CASCADE_LIMIT" default:"512"`
}

type kafkaConfig struct {
	Brokers  []string `envconfig:"MEDIA_ORCHESTRATOR_KAFKA_BROKERS" default:""`
	Topic    string   `envconfig:"MEDIA_ORCHESTRATOR_KAFKA_TOPIC" default:""`
	ClientID string   `envconfig:"MEDIA_ORCHESTRATOR_KAFKA_CLIENT_ID" default:""`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a config suited for tests: in-memory sqlite and default
// engine knobs.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{
			Type: "sqlite",
			Name: ":memory:",
		},
		Service: &svcConfig{
			LogLevel: "debug",
			Jobs: jobsConfig{
				MaxFailures:   3,
				TouchInterval: 5 * time.Second,
				CascadeLimit:  512,
			},
			StorageDir: "/tmp/media-orchestrator",
		},
	}
}
