package conf

import (
	"flag"
	"fmt"

	"github.com/spf13/viper"
)

// Config application configuration structure
type Config struct {
	Net  string
	Port string

	Database DatabaseConfig
	Redis    RedisConfig
	Blobnet  BlobnetConfig
	Payment  PaymentConfig
	Renewal  RenewalConfig
	Uploader UploaderConfig
}

// DatabaseConfig MySQL configuration
type DatabaseConfig struct {
	Dsn          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig redis cache configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	CacheTTL int // seconds
}

// BlobnetConfig blob network configuration
type BlobnetConfig struct {
	Type           string  // http, s3, oss, devnet
	Endpoint       string  // http gateway base URL
	TimeoutMinutes int     // dispersal/retrieval timeout
	CertPrefix     string  // marker prepended to issued certificates
	BucketsMiB     []int64 // accepted blob sizes, ascending
	DataDir        string  // devnet pebble directory
	S3             S3Config
	OSS            OSSConfig
}

// S3Config S3-compatible gateway configuration
type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// OSSConfig aliyun OSS gateway configuration
type OSSConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// PaymentConfig payment ledger configuration
type PaymentConfig struct {
	Enabled         bool   // false = local bypass mode, no ledger calls
	LedgerURL       string // contract gateway base URL
	TimeoutSeconds  int
	PricePerUnitDay int64 // ledger units per storage unit per day
	UnitBytes       int64 // bytes per storage unit
	BaseGasUnit     int64 // flat gas cost per blob submission
}

// RenewalConfig renewal scheduler configuration
type RenewalConfig struct {
	IntervalMinutes       int // scheduler tick
	LookaheadHours        int // renew files expiring within this window
	RetentionDays         int // blob network retention period
	BalanceStalenessHours int // refresh cached balances older than this
	AbandonedGraceHours   int // delete incomplete chunked uploads older than this
}

// UploaderConfig upload limit configuration
type UploaderConfig struct {
	MaxChunks   int   // max chunks per file
	MaxFileSize int64 // aggregate file size cap in bytes
}

// Cfg global configuration instance
var Cfg *Config

var configFile = flag.String("config", "config.yaml", "config file path")

// GetYaml returns the config file path from the -config flag
func GetYaml() string {
	if !flag.Parsed() {
		flag.Parse()
	}
	return *configFile
}

// InitConfig initialize configuration
func InitConfig() error {
	viper.SetConfigFile(GetYaml())
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("Fatal error config file: %s", err)
	}

	Cfg = &Config{
		Net:  viper.GetString("net"),
		Port: viper.GetString("port"),

		Database: DatabaseConfig{
			Dsn:          viper.GetString("database.dsn"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
		},

		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Host:     viper.GetString("redis.host"),
			Port:     viper.GetInt("redis.port"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
			CacheTTL: viper.GetInt("redis.cache_ttl"),
		},

		Blobnet: BlobnetConfig{
			Type:           viper.GetString("blobnet.type"),
			Endpoint:       viper.GetString("blobnet.endpoint"),
			TimeoutMinutes: viper.GetInt("blobnet.timeout_minutes"),
			CertPrefix:     viper.GetString("blobnet.cert_prefix"),
			DataDir:        viper.GetString("blobnet.data_dir"),
			S3: S3Config{
				Region:    viper.GetString("blobnet.s3.region"),
				Endpoint:  viper.GetString("blobnet.s3.endpoint"),
				AccessKey: viper.GetString("blobnet.s3.access_key"),
				SecretKey: viper.GetString("blobnet.s3.secret_key"),
				Bucket:    viper.GetString("blobnet.s3.bucket"),
			},
			OSS: OSSConfig{
				Endpoint:  viper.GetString("blobnet.oss.endpoint"),
				AccessKey: viper.GetString("blobnet.oss.access_key"),
				SecretKey: viper.GetString("blobnet.oss.secret_key"),
				Bucket:    viper.GetString("blobnet.oss.bucket"),
			},
		},

		Payment: PaymentConfig{
			Enabled:         viper.GetBool("payment.enabled"),
			LedgerURL:       viper.GetString("payment.ledger_url"),
			TimeoutSeconds:  viper.GetInt("payment.timeout_seconds"),
			PricePerUnitDay: viper.GetInt64("payment.price_per_unit_day"),
			UnitBytes:       viper.GetInt64("payment.unit_bytes"),
			BaseGasUnit:     viper.GetInt64("payment.base_gas_unit"),
		},

		Renewal: RenewalConfig{
			IntervalMinutes:       viper.GetInt("renewal.interval_minutes"),
			LookaheadHours:        viper.GetInt("renewal.lookahead_hours"),
			RetentionDays:         viper.GetInt("renewal.retention_days"),
			BalanceStalenessHours: viper.GetInt("renewal.balance_staleness_hours"),
			AbandonedGraceHours:   viper.GetInt("renewal.abandoned_grace_hours"),
		},

		Uploader: UploaderConfig{
			MaxChunks:   viper.GetInt("uploader.max_chunks"),
			MaxFileSize: viper.GetInt64("uploader.max_file_size") * 1024 * 1024, // MB to bytes
		},
	}

	// blob size buckets configured in MiB, ascending
	for _, b := range viper.GetIntSlice("blobnet.buckets_mib") {
		Cfg.Blobnet.BucketsMiB = append(Cfg.Blobnet.BucketsMiB, int64(b))
	}

	// Set default values
	if Cfg.Port == "" {
		Cfg.Port = "7381"
	}
	if Cfg.Blobnet.Type == "" {
		Cfg.Blobnet.Type = "devnet"
	}
	if Cfg.Blobnet.TimeoutMinutes == 0 {
		Cfg.Blobnet.TimeoutMinutes = 10
	}
	if Cfg.Blobnet.DataDir == "" {
		Cfg.Blobnet.DataDir = "./data/blobnet"
	}
	if len(Cfg.Blobnet.BucketsMiB) == 0 {
		Cfg.Blobnet.BucketsMiB = []int64{1, 2, 4, 8, 16}
	}
	if Cfg.Payment.PricePerUnitDay == 0 {
		Cfg.Payment.PricePerUnitDay = 1
	}
	if Cfg.Payment.UnitBytes == 0 {
		Cfg.Payment.UnitBytes = 1024 * 1024
	}
	if Cfg.Payment.BaseGasUnit == 0 {
		Cfg.Payment.BaseGasUnit = 100
	}
	if Cfg.Payment.TimeoutSeconds == 0 {
		Cfg.Payment.TimeoutSeconds = 30
	}
	if Cfg.Renewal.IntervalMinutes == 0 {
		Cfg.Renewal.IntervalMinutes = 60
	}
	if Cfg.Renewal.LookaheadHours == 0 {
		Cfg.Renewal.LookaheadHours = 48
	}
	if Cfg.Renewal.RetentionDays == 0 {
		Cfg.Renewal.RetentionDays = 14
	}
	if Cfg.Renewal.BalanceStalenessHours == 0 {
		Cfg.Renewal.BalanceStalenessHours = 6
	}
	if Cfg.Renewal.AbandonedGraceHours == 0 {
		Cfg.Renewal.AbandonedGraceHours = 24
	}
	if Cfg.Uploader.MaxChunks == 0 {
		Cfg.Uploader.MaxChunks = 1024
	}
	if Cfg.Uploader.MaxFileSize == 0 {
		Cfg.Uploader.MaxFileSize = 1024 * 1024 * 1024 // 1GB
	}
	if Cfg.Database.MaxOpenConns == 0 {
		Cfg.Database.MaxOpenConns = 100
	}
	if Cfg.Database.MaxIdleConns == 0 {
		Cfg.Database.MaxIdleConns = 10
	}
	if Cfg.Redis.CacheTTL == 0 {
		Cfg.Redis.CacheTTL = 300
	}

	return nil
}
