package config

import (
	"fmt"
	"strings"

	"github.com/blues/cfl/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Task     TaskConfig     `mapstructure:"task"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`

	Auth            string `mapstructure:"auth"`             // header 或 signature
	SignatureWindow int    `mapstructure:"signature_window"` // 签名时间戳允许偏差（秒）
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN postgres 连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode)
}

// LedgerConfig 账本配置
type LedgerConfig struct {
	Backend        string `mapstructure:"backend"`          // memory 或 chain
	Owner          string `mapstructure:"owner"`            // 管理员地址
	Custody        string `mapstructure:"custody"`          // 托管地址
	FeeBps         uint64 `mapstructure:"fee_bps"`          // 手续费率（基点）
	FeeRecipient   string `mapstructure:"fee_recipient"`    // 手续费收款地址
	Approver       string `mapstructure:"approver"`         // 审批人，为空则不需要审批
	ReceiptBaseURI string `mapstructure:"receipt_base_uri"` // 凭证元数据基础地址
}

// ChainConfig 链上资产划转配置
type ChainConfig struct {
	ChainId    int64  `mapstructure:"chain_id"`    // 链ID
	RpcUrl     string `mapstructure:"rpc_url"`     // RPC节点URL
	PrivateKey string `mapstructure:"private_key"` // 托管账户私钥
	GasLimit   uint64 `mapstructure:"gas_limit"`   // 0 表示自动估算

	Confirmations uint64 `mapstructure:"confirmations"` // 入账确认块数
	StartBlock    uint64 `mapstructure:"start_block"`   // 原生币入账扫描起始区块
}

// KafkaConfig 事件发布配置，brokers 为空时不发布
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// RedisConfig 幂等存储配置，url 为空时不启用
type RedisConfig struct {
	URL            string `mapstructure:"url"`
	IdempotencyTTL int    `mapstructure:"idempotency_ttl"` // 秒
}

type TaskConfig struct {
	Interval int `mapstructure:"interval"` // 秒
	Workers  int `mapstructure:"workers"`  // 事件处理协程上限
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.auth", "header")
	v.SetDefault("server.signature_window", 300)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "crowdfunding")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("ledger.backend", "memory")
	v.SetDefault("ledger.fee_bps", 0)
	v.SetDefault("chain.confirmations", 3)
	v.SetDefault("kafka.topic", "cfl.ledger.events")
	v.SetDefault("redis.idempotency_ttl", 86400)
	v.SetDefault("task.interval", 60)
	v.SetDefault("task.workers", 8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
}

// Load 读取配置文件与环境变量（CFL_LEDGER_OWNER 等）
func Load() *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cfl")
	setDefaults(v)

	v.SetEnvPrefix("cfl")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		logger.Warn("Could not read config file: %v", err)
	}

	cfg, err := decode(v)
	if err != nil {
		logger.Fatal("Invalid config: %v", err)
	}
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查地址格式、后端类型与认证方式
func (c *Config) Validate() error {
	switch c.Server.Auth {
	case "header", "signature":
	default:
		return fmt.Errorf("unknown server auth %q", c.Server.Auth)
	}

	switch c.Ledger.Backend {
	case "memory":
	case "chain":
		if c.Chain.RpcUrl == "" || c.Chain.PrivateKey == "" {
			return fmt.Errorf("ledger backend chain requires chain.rpc_url and chain.private_key")
		}
		// 链上资金不能只凭请求头认定身份
		if c.Server.Auth != "signature" {
			return fmt.Errorf("ledger backend chain requires server.auth signature")
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}
	if c.Server.Auth == "signature" && c.Server.SignatureWindow <= 0 {
		return fmt.Errorf("server.signature_window must be positive")
	}

	for name, addr := range map[string]string{
		"ledger.owner":         c.Ledger.Owner,
		"ledger.custody":       c.Ledger.Custody,
		"ledger.fee_recipient": c.Ledger.FeeRecipient,
		"ledger.approver":      c.Ledger.Approver,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("%s is not a valid address: %q", name, addr)
		}
	}
	if c.Ledger.Owner == "" {
		return fmt.Errorf("ledger.owner is required")
	}
	return nil
}

// Address 解析可选地址，空字符串得到零地址
func Address(s string) common.Address {
	if s == "" {
		return common.Address{}
	}
	return common.HexToAddress(s)
}
