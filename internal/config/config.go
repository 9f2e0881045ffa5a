// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/viper"
)

type Config struct {
	RPCList              []string      `mapstructure:"rpc_list"`
	ProgramID            string        `mapstructure:"program_id"`
	Commitment           string        `mapstructure:"commitment"`
	ConfirmTimeoutMs     int           `mapstructure:"confirm_timeout_ms"`
	PollIntervalMs       int           `mapstructure:"poll_interval_ms"`
	ReadRetries          int           `mapstructure:"read_retries"`
	KeypairPath          string        `mapstructure:"keypair_path"`
	WalletsFile          string        `mapstructure:"wallets_file"`
	WalletName           string        `mapstructure:"wallet_name"`
	RemoteSignerURL      string        `mapstructure:"remote_signer_url"`
	RemoteWalletPubkey   string        `mapstructure:"remote_wallet_pubkey"`
	RequireUniqueBatchID bool          `mapstructure:"require_unique_batch_id"`
	Attestation          string        `mapstructure:"attestation"`
	AttestationKeyPath   string        `mapstructure:"attestation_key_path"`
	Storage              StorageConfig `mapstructure:"storage"`
	Worker               WorkerConfig  `mapstructure:"worker"`
	MetricsAddr          string        `mapstructure:"metrics_addr"`
	DebugLogging         bool          `mapstructure:"debug_logging"`
	LogFile              string        `mapstructure:"log_file"`
	ExplorerCluster      string        `mapstructure:"explorer_cluster"`
}

// StorageConfig - хранилище заказов, заданий и журнала транзакций
type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	Path        string `mapstructure:"path"`
	PostgresURL string `mapstructure:"postgres_url"`
}

// WorkerConfig - обработчик очереди заданий
type WorkerConfig struct {
	Workers        int `mapstructure:"workers"`
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	MaxAttempts    int `mapstructure:"max_attempts"`
	BackoffBaseMs  int `mapstructure:"backoff_base_ms"`
	BackoffMaxMs   int `mapstructure:"backoff_max_ms"`
}

const (
	DefaultRPC              = "https://api.devnet.solana.com"
	DefaultProgramID        = "DBL4hbkkDsVHwDBSKGmA4ivneVR8Zf5RHmYHpE1XrR8x"
	DefaultConfirmTimeoutMs = 60000
	DefaultPollIntervalMs   = 500
	DefaultReadRetries      = 3
	DefaultWorkers          = 2
	DefaultWorkerPollMs     = 5000
	DefaultMaxAttempts      = 5
	DefaultBackoffBaseMs    = 60000
	DefaultBackoffMaxMs     = 3600000

	AttestationNone = "none"
	AttestationKey  = "key"

	StorageBadger   = "badger"
	StoragePostgres = "postgres"
)

// Default возвращает конфигурацию без файла
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]interface{}{
		"rpc_list":                []string{DefaultRPC},
		"program_id":              DefaultProgramID,
		"commitment":              string(rpc.CommitmentConfirmed),
		"confirm_timeout_ms":      DefaultConfirmTimeoutMs,
		"poll_interval_ms":        DefaultPollIntervalMs,
		"read_retries":            DefaultReadRetries,
		"attestation":             AttestationNone,
		"storage.driver":          StorageBadger,
		"storage.path":            "data/medchain",
		"worker.workers":          DefaultWorkers,
		"worker.poll_interval_ms": DefaultWorkerPollMs,
		"worker.max_attempts":     DefaultMaxAttempts,
		"worker.backoff_base_ms":  DefaultBackoffBaseMs,
		"worker.backoff_max_ms":   DefaultBackoffMaxMs,
		"log_file":                "medchain.log",
		"explorer_cluster":        "devnet",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// LoadConfig читает файл конфигурации (JSON или YAML). Пустой path - только значения по умолчанию и окружение.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return fmt.Errorf("invalid RPC URL %q: %w", rpcURL, err)
		}
	}
	if _, err := solana.PublicKeyFromBase58(cfg.ProgramID); err != nil {
		return fmt.Errorf("invalid program_id: %w", err)
	}
	switch rpc.CommitmentType(cfg.Commitment) {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return fmt.Errorf("invalid commitment %q", cfg.Commitment)
	}
	if cfg.RemoteSignerURL != "" {
		if err := validateURLWithCache(cfg.RemoteSignerURL, "http"); err != nil {
			return errors.New("invalid remote_signer_url protocol")
		}
		if _, err := solana.PublicKeyFromBase58(cfg.RemoteWalletPubkey); err != nil {
			return errors.New("remote_wallet_pubkey is required with remote_signer_url")
		}
	}
	if cfg.WalletsFile != "" && cfg.WalletName == "" {
		return errors.New("wallet_name is required with wallets_file")
	}
	switch cfg.Attestation {
	case AttestationNone, "":
	case AttestationKey:
		if cfg.AttestationKeyPath == "" {
			return errors.New("attestation_key_path is required for key attestation")
		}
	default:
		return fmt.Errorf("unknown attestation %q", cfg.Attestation)
	}
	switch cfg.Storage.Driver {
	case StorageBadger:
	case StoragePostgres:
		if cfg.Storage.PostgresURL == "" {
			return errors.New("storage.postgres_url is required for postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.ConfirmTimeoutMs <= 0 {
		return errors.New("invalid confirm_timeout_ms")
	}
	if cfg.PollIntervalMs <= 0 || cfg.PollIntervalMs > cfg.ConfirmTimeoutMs {
		return errors.New("invalid poll_interval_ms")
	}
	if cfg.ReadRetries <= 0 {
		return errors.New("invalid read_retries")
	}
	if cfg.Worker.Workers <= 0 {
		return errors.New("invalid worker.workers count")
	}
	if cfg.Worker.PollIntervalMs <= 0 {
		return errors.New("invalid worker.poll_interval_ms")
	}
	if cfg.Worker.MaxAttempts <= 0 {
		return errors.New("invalid worker.max_attempts")
	}
	if cfg.Worker.BackoffBaseMs <= 0 || cfg.Worker.BackoffMaxMs < cfg.Worker.BackoffBaseMs {
		return errors.New("invalid worker backoff")
	}
	return nil
}

// ConfirmTimeout - таймаут подтверждения транзакции
func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutMs) * time.Millisecond
}

// PollInterval - период опроса статуса транзакции
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("MEDCHAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envRPCList := v.GetString("RPC_LIST")
	if envRPCList != "" {
		rpcs := strings.Split(envRPCList, ",")
		var cleanRPCs []string
		for _, rpc := range rpcs {
			clean := strings.TrimSpace(rpc)
			if clean != "" {
				cleanRPCs = append(cleanRPCs, clean)
			}
		}
		if len(cleanRPCs) > 0 {
			cfg.RPCList = cleanRPCs
		}
	}

	overrides := map[string]*string{
		"PROGRAM_ID":           &cfg.ProgramID,
		"KEYPAIR_PATH":         &cfg.KeypairPath,
		"WALLETS_FILE":         &cfg.WalletsFile,
		"WALLET_NAME":          &cfg.WalletName,
		"REMOTE_SIGNER_URL":    &cfg.RemoteSignerURL,
		"REMOTE_WALLET_PUBKEY": &cfg.RemoteWalletPubkey,
		"POSTGRES_URL":         &cfg.Storage.PostgresURL,
		"STORAGE_PATH":         &cfg.Storage.Path,
	}
	for key, target := range overrides {
		if value := v.GetString(key); value != "" {
			*target = value
		}
	}
	return nil
}
