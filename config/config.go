package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/errors"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/export"
)

type AppConfig struct {
	File     string          `json:"-"`
	Vision   *VisionConfig   `json:"vision,omitempty"`
	Report   *ReportConfig   `json:"report,omitempty"`
	Export   *ExportConfig   `json:"export,omitempty"`
	Log      *LogConfig      `json:"log,omitempty"`
	Redis    *RedisConfig    `json:"redis,omitempty"`
	Database *DatabaseConfig `json:"database,omitempty"`
	Publish  *PublishConfig  `json:"publish,omitempty"`
}

type VisionConfig struct {
	Url   string `json:"url"`
	Token string `json:"-"`
}

type ReportConfig struct {
	Client string `json:"client"`
	// Folder holds the dashboard archives downloaded from the console.
	Folder   string `json:"folder"`
	Output   string `json:"output"`
	Schedule string `json:"schedule"`
}

type ExportConfig struct {
	Workers        int           `json:"workers"`
	RequestTimeout time.Duration `json:"requestTimeout"`
	RateLimit      float64       `json:"rateLimit"`
	RateBurst      int           `json:"rateBurst"`
	Policy         export.Policy `json:"policy"`
}

type LogConfig struct {
	Dir  string `json:"dir"`
	File bool   `json:"file"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Enabled reports whether a Redis address was configured.
func (c *RedisConfig) Enabled() bool { return c != nil && c.Addr != "" }

type DatabaseConfig struct {
	Url string `json:"url"`
}

func (c *DatabaseConfig) Enabled() bool { return c != nil && c.Url != "" }

type PublishConfig struct {
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"-"`
	SecretAccessKey string `json:"-"`
}

func (c *PublishConfig) Enabled() bool { return c != nil && c.Bucket != "" }

// envBindings maps config keys to the environment variables that may
// carry them, in lookup order. The lowercase names are the ones the
// report has always read from .env.
var envBindings = map[string][]string{
	"vision_url":      {"VISION_URL", "url_region"},
	"vision_token":    {"VISION_TOKEN", "token"},
	"client":          {"REPORT_CLIENT", "cliente"},
	"folder":          {"REPORT_FOLDER", "pasta"},
	"output_dir":      {"REPORT_OUTPUT_DIR"},
	"schedule":        {"REPORT_SCHEDULE"},
	"workers":         {"EXPORT_WORKERS"},
	"request_timeout": {"EXPORT_REQUEST_TIMEOUT"},
	"rate_limit":      {"EXPORT_RATE_LIMIT"},
	"rate_burst":      {"EXPORT_RATE_BURST"},
	"poll_interval":   {"EXPORT_POLL_INTERVAL"},
	"deadline":        {"EXPORT_DEADLINE"},
	"max_restarts":    {"EXPORT_MAX_RESTARTS"},
	"stuck_threshold": {"EXPORT_STUCK_THRESHOLD"},
	"backoff_step":    {"EXPORT_BACKOFF_STEP"},
	"backoff_ceiling": {"EXPORT_BACKOFF_CEILING"},
	"log_dir":         {"LOG_DIR"},
	"log_file":        {"LOG_FILE"},
	"redis_addr":      {"REDIS_ADDR"},
	"redis_password":  {"REDIS_PASSWORD"},
	"redis_db":        {"REDIS_DB"},
	"data_source":     {"DATA_SOURCE"},
	"s3_bucket":       {"S3_BUCKET"},
	"s3_prefix":       {"S3_PREFIX"},
	"s3_region":       {"AWS_REGION"},
	"s3_endpoint":     {"S3_ENDPOINT_URL"},
	"s3_access_key":   {"AWS_ACCESS_KEY_ID"},
	"s3_secret_key":   {"AWS_SECRET_ACCESS_KEY"},
}

func LoadConfig() (*AppConfig, error) {
	return Load(os.Args[1:])
}

// Load resolves the configuration from args, the environment, an optional
// JSON file and an optional .env file, in that order of precedence.
func Load(args []string) (*AppConfig, error) {
	v := viper.New()
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, errors.New("could not parse flags", errors.WithCause(err), errors.WithCode(errors.CodeInvalidArgument))
	}
	bindFlagsAndEnv(v, fs)

	if err := loadDotEnv(v, v.GetString("env_file")); err != nil {
		return nil, err
	}

	configFile := getConfigFilePath(v)
	if configFile != "" {
		if err := loadFromFile(v, configFile); err != nil {
			return nil, err
		}
	}

	cfg := buildAppConfig(v, configFile)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func newFlagSet() *pflag.FlagSet {
	def := export.DefaultPolicy()
	fs := pflag.NewFlagSet("vision-report", pflag.ContinueOnError)

	fs.String("config_file", "", "Configuration file in JSON format")
	fs.String("env_file", ".env", "Dotenv file with credentials")

	// vision one
	fs.String("vision_url", "", "Regional Vision One API base URL")
	fs.String("vision_token", "", "Vision One API token")

	// report
	fs.String("client", "", "Client name used in the workbook file name")
	fs.String("folder", "", "Folder holding the dashboard archives")
	fs.String("output_dir", ".", "Directory the workbook and summary are written to")
	fs.String("schedule", "", "Cron expression; empty runs once and exits")

	// export
	fs.Int("workers", 2, "Number of concurrent export workers")
	fs.Duration("request_timeout", 60*time.Second, "Per-request HTTP timeout")
	fs.Float64("rate_limit", 0, "Requests per second to Vision One, 0 disables pacing")
	fs.Int("rate_burst", 1, "Request burst size")
	fs.Duration("poll_interval", def.PollInterval, "Initial poll delay")
	fs.Duration("deadline", def.Deadline, "Global deadline of one export")
	fs.Int("max_restarts", def.MaxRestarts, "Restarts allowed for a stuck export")
	fs.Duration("stuck_threshold", def.StuckThreshold, "Time without change before an export counts as stuck")
	fs.Duration("backoff_step", def.BackoffStep, "Delay added after every poll")
	fs.Duration("backoff_ceiling", def.BackoffCeiling, "Maximum poll delay")

	// log
	fs.String("log_dir", "logs", "Directory of per-run log files")
	fs.Bool("log_file", true, "Write a per-run log file")

	// redis
	fs.String("redis_addr", "", "Redis address, empty disables the status cache")
	fs.String("redis_password", "", "Redis password")
	fs.Int("redis_db", 0, "Redis DB number")

	// database
	fs.String("data_source", "", "Postgres data source, empty disables export history")

	// publish
	fs.String("s3_bucket", "", "S3 bucket for the finished report, empty disables upload")
	fs.String("s3_prefix", "", "Key prefix inside the bucket")
	fs.String("s3_region", "", "S3 region")
	fs.String("s3_endpoint", "", "S3-compatible endpoint URL")
	fs.String("s3_access_key", "", "S3 access key id")
	fs.String("s3_secret_key", "", "S3 secret access key")

	return fs
}

func bindFlagsAndEnv(v *viper.Viper, fs *pflag.FlagSet) {
	_ = v.BindPFlags(fs)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
}

// loadDotEnv feeds the dotenv file in below the environment and any config
// file. The process environment is left untouched.
func loadDotEnv(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	values, err := godotenv.Read(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.New(fmt.Sprintf("could not load env file: %s", err.Error()))
	}
	for key, envs := range envBindings {
		for _, name := range envs {
			if val, ok := values[name]; ok {
				v.SetDefault(key, val)
				break
			}
		}
	}
	return nil
}

func getConfigFilePath(v *viper.Viper) string {
	file := v.GetString("config_file")
	if file == "" {
		file = os.Getenv("VISION_REPORT_CONFIG_FILE")
	}
	return file
}

func loadFromFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return errors.New(fmt.Sprintf("could not load config file: %s", err.Error()))
	}
	return nil
}

func buildAppConfig(v *viper.Viper, file string) *AppConfig {
	return &AppConfig{
		File: file,
		Vision: &VisionConfig{
			Url:   v.GetString("vision_url"),
			Token: v.GetString("vision_token"),
		},
		Report: &ReportConfig{
			Client:   v.GetString("client"),
			Folder:   v.GetString("folder"),
			Output:   v.GetString("output_dir"),
			Schedule: v.GetString("schedule"),
		},
		Export: &ExportConfig{
			Workers:        v.GetInt("workers"),
			RequestTimeout: v.GetDuration("request_timeout"),
			RateLimit:      v.GetFloat64("rate_limit"),
			RateBurst:      v.GetInt("rate_burst"),
			Policy: export.Policy{
				PollInterval:   v.GetDuration("poll_interval"),
				Deadline:       v.GetDuration("deadline"),
				MaxRestarts:    v.GetInt("max_restarts"),
				StuckThreshold: v.GetDuration("stuck_threshold"),
				BackoffStep:    v.GetDuration("backoff_step"),
				BackoffCeiling: v.GetDuration("backoff_ceiling"),
			},
		},
		Log: &LogConfig{
			Dir:  v.GetString("log_dir"),
			File: v.GetBool("log_file"),
		},
		Redis: &RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		Database: &DatabaseConfig{Url: v.GetString("data_source")},
		Publish: &PublishConfig{
			Bucket:          v.GetString("s3_bucket"),
			Prefix:          v.GetString("s3_prefix"),
			Region:          v.GetString("s3_region"),
			Endpoint:        v.GetString("s3_endpoint"),
			AccessKeyID:     v.GetString("s3_access_key"),
			SecretAccessKey: v.GetString("s3_secret_key"),
		},
	}
}

func validateConfig(cfg *AppConfig) error {
	if cfg.Vision.Url == "" {
		return errors.New("Vision One URL is required")
	}
	if cfg.Vision.Token == "" {
		return errors.New("Vision One token is required")
	}
	if cfg.Report.Client == "" {
		return errors.New("Client name is required")
	}
	if cfg.Export.Workers < 1 {
		return errors.New("Workers must be at least 1")
	}
	if err := cfg.Export.Policy.Validate(); err != nil {
		return errors.New("invalid export policy", errors.WithCause(err), errors.WithCode(errors.CodeInvalidArgument))
	}
	if cfg.Report.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Report.Schedule); err != nil {
			return errors.New("invalid schedule", errors.WithCause(err), errors.WithCode(errors.CodeInvalidArgument))
		}
	}
	return nil
}
