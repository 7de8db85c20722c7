package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Auth      AuthConfig      `mapstructure:"auth"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Log       LogConfig       `mapstructure:"log"`
	Client    ClientConfig    `mapstructure:"client"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Driver 为 "sqlite" 或 "mysql"
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type StorageConfig struct {
	SharedDir   string `mapstructure:"shared_dir"`
	MaxFileSize int64  `mapstructure:"max_file_size"`
}

type CacheConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

type AuthConfig struct {
	// 为 true 时目录/评分接口必须携带 Bearer token
	RequireToken bool `mapstructure:"require_token"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type WebSocketConfig struct {
	BroadcastBufferSize int `mapstructure:"broadcast_buffer_size"`
	SendBufferSize      int `mapstructure:"send_buffer_size"`

	WriteWaitSeconds int   `mapstructure:"write_wait_seconds"`
	PongWaitSeconds  int   `mapstructure:"pong_wait_seconds"`
	MaxMessageSize   int64 `mapstructure:"max_message_size"`
	// 重试相关配置
	MessageRetryCount      int `mapstructure:"message_retry_count"`
	MessageRetryIntervalMs int `mapstructure:"message_retry_interval_ms"`
}

type LogConfig struct {
	Level          string `mapstructure:"level"`
	ProductionMode bool   `mapstructure:"production_mode"`
}

type ClientConfig struct {
	ServerURL      string        `mapstructure:"server_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	HistoryLimit   int           `mapstructure:"history_limit"`
	DownloadDir    string        `mapstructure:"download_dir"`
}

var GlobalConfig Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "database.db")

	v.SetDefault("storage.shared_dir", "shared_files")
	v.SetDefault("storage.max_file_size", 50*1024*1024)

	v.SetDefault("cache.size", 1024)
	v.SetDefault("cache.ttl", 10*time.Minute)

	v.SetDefault("auth.require_token", false)

	v.SetDefault("jwt.secret", "change-me")
	v.SetDefault("jwt.expiration", 24*time.Hour)

	v.SetDefault("websocket.broadcast_buffer_size", 256)
	v.SetDefault("websocket.send_buffer_size", 256)
	v.SetDefault("websocket.write_wait_seconds", 10)
	v.SetDefault("websocket.pong_wait_seconds", 60)
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.message_retry_count", 3)
	v.SetDefault("websocket.message_retry_interval_ms", 100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.production_mode", false)

	v.SetDefault("client.server_url", "http://127.0.0.1:5000")
	v.SetDefault("client.request_timeout", 10*time.Second)
	v.SetDefault("client.poll_interval", time.Second)
	v.SetDefault("client.history_limit", 50)
	v.SetDefault("client.download_dir", "downloads")
}

// Load 读取指定路径的配置文件，path 为空时只使用默认值和环境变量
func Load(path string) error {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FILESHARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&GlobalConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return nil
}

// 默认配置文件 config/config.yaml
func Init() error {
	return Load(filepath.Join(projectRoot(), "config", "config.yaml"))
}

// 测试用的配置文件
func InitTest() error {
	return Load(filepath.Join(projectRoot(), "config", "config.test.yaml"))
}

// 获取项目根目录
func projectRoot() string {
	_, b, _, _ := runtime.Caller(0)
	return filepath.Dir(filepath.Dir(filepath.Dir(b)))
}
