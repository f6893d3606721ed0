package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const envPrefix = "QUESTPROOF_"

// Config is the contents of the server YAML file
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Auth    AuthConfig    `yaml:"auth"`
	Redis   RedisConfig   `yaml:"redis"`
	Events  EventsConfig  `yaml:"events"`
	Storage StorageConfig `yaml:"storage"`
	Quests  QuestsConfig  `yaml:"quests"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Reward  RewardConfig  `yaml:"reward"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AuthConfig struct {
	ChallengeTTL  time.Duration `yaml:"challengeTtl"`
	SessionTTL    time.Duration `yaml:"sessionTtl"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// RedisConfig enables the shared session store, rate limiter and event stream.
// An empty URL keeps everything in process.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// EventsConfig controls the in-process consumer of domain events
type EventsConfig struct {
	// Audit writes every sign-in, logout and submission event to the log
	Audit bool `yaml:"audit"`
	// ConsumerGroup names the redis stream group of the audit consumer
	ConsumerGroup string `yaml:"consumerGroup"`
}

type StorageConfig struct {
	// Backend is "file" or "badger"
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
}

type QuestsConfig struct {
	// File is an optional YAML quest catalog; the built-in quests are used when empty
	File         string        `yaml:"file"`
	Cooldown     time.Duration `yaml:"cooldown"`
	HistoryLimit int           `yaml:"historyLimit"`
	MemoPrefix   string        `yaml:"memoPrefix"`
}

// OpenAIConfig enables LLM grading when APIKey is set
type OpenAIConfig struct {
	APIKey  string        `yaml:"apiKey"`
	BaseURL string        `yaml:"baseUrl"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// LedgerConfig enables memo anchoring when both RPCURL and PrivateKey are set
type LedgerConfig struct {
	RPCURL         string        `yaml:"rpcUrl"`
	PrivateKey     string        `yaml:"privateKey"`
	ExplorerTxURL  string        `yaml:"explorerTxUrl"`
	SendTimeout    time.Duration `yaml:"sendTimeout"`
	ConfirmTimeout time.Duration `yaml:"confirmTimeout"`
}

// RewardConfig enables rewards when Amount is set and the ledger is enabled
type RewardConfig struct {
	Amount   string `yaml:"amount"`
	MinScore int    `yaml:"minScore"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":9000",
			ShutdownTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Auth: AuthConfig{
			ChallengeTTL:  5 * time.Minute,
			SessionTTL:    24 * time.Hour,
			SweepInterval: time.Minute,
		},
		Events: EventsConfig{
			Audit:         true,
			ConsumerGroup: "questproof-audit",
		},
		Storage: StorageConfig{
			Backend: "file",
			Dir:     "data",
		},
		Quests: QuestsConfig{
			Cooldown:     60 * time.Second,
			HistoryLimit: 20,
			MemoPrefix:   "questproof",
		},
		OpenAI: OpenAIConfig{
			Timeout: 15 * time.Second,
		},
		Ledger: LedgerConfig{
			ExplorerTxURL:  "https://sepolia.etherscan.io/tx/%s",
			SendTimeout:    15 * time.Second,
			ConfirmTimeout: 30 * time.Second,
		},
		Reward: RewardConfig{
			MinScore: 70,
		},
	}
}

// Load reads the YAML file at path over the defaults and applies environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "failed to read config file %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "failed to parse config file %s", path)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides fields from QUESTPROOF_* variables. Secrets are
// expected to come from here rather than the file.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"ADDR":               &c.Server.Addr,
		"LOG_LEVEL":          &c.Log.Level,
		"LOG_FORMAT":         &c.Log.Format,
		"REDIS_URL":          &c.Redis.URL,
		"STORAGE_BACKEND":    &c.Storage.Backend,
		"STORAGE_DIR":        &c.Storage.Dir,
		"QUESTS_FILE":        &c.Quests.File,
		"OPENAI_API_KEY":     &c.OpenAI.APIKey,
		"OPENAI_BASE_URL":    &c.OpenAI.BaseURL,
		"OPENAI_MODEL":       &c.OpenAI.Model,
		"LEDGER_RPC_URL":     &c.Ledger.RPCURL,
		"LEDGER_PRIVATE_KEY": &c.Ledger.PrivateKey,
		"REWARD_AMOUNT":      &c.Reward.Amount,
	}
	for name, field := range strs {
		if v, ok := lookup(envPrefix + name); ok {
			*field = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup(envPrefix + "REWARD_MIN_SCORE"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "invalid %sREWARD_MIN_SCORE", envPrefix)
		}
		c.Reward.MinScore = n
	}
	return nil
}

// Validate rejects values the server cannot start with
func (c Config) Validate() error {
	var problems []string

	if c.Server.Addr == "" {
		problems = append(problems, "server.addr is required")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, "log.level is not a valid level")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, "log.format must be text or json")
	}
	if c.Auth.ChallengeTTL <= 0 || c.Auth.SessionTTL <= 0 {
		problems = append(problems, "auth ttls must be positive")
	}
	switch c.Storage.Backend {
	case "file", "badger":
	default:
		problems = append(problems, "storage.backend must be file or badger")
	}
	if c.Quests.Cooldown <= 0 {
		problems = append(problems, "quests.cooldown must be positive")
	}
	if c.Reward.MinScore < 0 || c.Reward.MinScore > 100 {
		problems = append(problems, "reward.minScore must be between 0 and 100")
	}

	if len(problems) > 0 {
		return errors.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// LedgerEnabled reports whether memo anchoring is configured
func (c Config) LedgerEnabled() bool {
	return c.Ledger.RPCURL != "" && c.Ledger.PrivateKey != ""
}

// NewLogger builds the root logger described by the log section
func (c LogConfig) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, errors.Wrap(err, "invalid log level")
	}

	logger := logrus.New()
	logger.SetLevel(level)
	if c.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
