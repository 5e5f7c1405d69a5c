package config

import (
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"solana-nft-marketplace/marketplace"
)

const EnvPrefix = "MARKETPLACE"

type Config struct {
	Network          string             `mapstructure:"network" validate:"oneof=devnet testnet mainnet-beta localnet"`
	RpcUrl           string             `mapstructure:"rpc_url" validate:"omitempty,url"`
	ProgramID        string             `mapstructure:"program_id" validate:"required,pubkey"`
	Keypair          string             `mapstructure:"keypair"`
	Commitment       string             `mapstructure:"commitment" validate:"oneof=processed confirmed finalized"`
	Confirmation     ConfirmationConfig `mapstructure:"confirmation"`
	SkipPreflight    bool               `mapstructure:"skip_preflight"`
	BalanceRefresh   time.Duration      `mapstructure:"balance_refresh" validate:"gt=0"`
	MetadataCacheTTL time.Duration      `mapstructure:"metadata_cache_ttl" validate:"gt=0"`
	Debug            bool               `mapstructure:"debug"`
	LogPath          string             `mapstructure:"log_path"`
}

type ConfirmationConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Delay   time.Duration `mapstructure:"delay" validate:"gt=0,ltefield=Timeout"`
}

var defaults = map[string]interface{}{
	"network":              "devnet",
	"rpc_url":              "",
	"program_id":           marketplace.DefaultProgramID.String(),
	"keypair":              "",
	"commitment":           string(rpc.CommitmentConfirmed),
	"confirmation.timeout": 60 * time.Second,
	"confirmation.delay":   2 * time.Second,
	"skip_preflight":       false,
	"balance_refresh":      30 * time.Second,
	"metadata_cache_ttl":   10 * time.Minute,
	"debug":                false,
	"log_path":             "",
}

// Load reads defaults, an optional config file, an optional .env file and
// MARKETPLACE_ prefixed environment variables, in increasing precedence.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "unable to load .env")
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "unable to read config %s", configFile)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("pubkey", func(fl validator.FieldLevel) bool {
		_, err := solana.PublicKeyFromBase58(fl.Field().String())
		return err == nil
	}); err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// Endpoint is the configured RPC url, or the network's public endpoint.
func (c *Config) Endpoint() string {
	if c.RpcUrl != "" {
		return c.RpcUrl
	}
	switch c.Network {
	case "mainnet-beta":
		return rpc.MainNetBeta.RPC
	case "testnet":
		return rpc.TestNet.RPC
	case "localnet":
		return rpc.LocalNet.RPC
	default:
		return rpc.DevNet.RPC
	}
}

func (c *Config) Program() solana.PublicKey {
	return solana.MustPublicKeyFromBase58(c.ProgramID)
}

func (c *Config) CommitmentType() rpc.CommitmentType {
	return rpc.CommitmentType(c.Commitment)
}

// ConfirmationStatus maps the commitment to the signature status that
// satisfies it.
func (c *Config) ConfirmationStatus() rpc.ConfirmationStatusType {
	switch c.CommitmentType() {
	case rpc.CommitmentProcessed:
		return rpc.ConfirmationStatusProcessed
	case rpc.CommitmentFinalized:
		return rpc.ConfirmationStatusFinalized
	default:
		return rpc.ConfirmationStatusConfirmed
	}
}
