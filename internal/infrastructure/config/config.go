package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Store     StoreConfig     `mapstructure:"store"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Image     ImageConfig     `mapstructure:"image"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Search    SearchConfig    `mapstructure:"search"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	LogLevel  string          `mapstructure:"log_level"`
	LogDir    string          `mapstructure:"log_dir"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // 需小於 WriteTimeout，504 才送得出去
}

// ProviderConfig 營養資料供應商設定
type ProviderConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	PageSize       int           `mapstructure:"page_size"`
	MaxPages       int           `mapstructure:"max_pages"`
	PageDelay       time.Duration `mapstructure:"page_delay"`
	PopulateTimeout time.Duration `mapstructure:"populate_timeout"`
	SearchLimit     int           `mapstructure:"search_limit"`
	BreakerEnabled  bool          `mapstructure:"breaker_enabled"`
}

// StoreConfig 持久化食譜庫設定
type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// RedisConfig Redis 設定
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	ImageTTL time.Duration `mapstructure:"image_ttl"`
}

// ImageConfig 圖片查詢設定
type ImageConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Workers     int           `mapstructure:"workers"`
	QueueSize   int           `mapstructure:"queue_size"`
	Placeholder string        `mapstructure:"placeholder"`
}

// RecommendConfig 推薦排序設定
type RecommendConfig struct {
	TopN             int           `mapstructure:"top_n"`
	MinStrictResults int           `mapstructure:"min_strict_results"`
	MinTargetedPool  int           `mapstructure:"min_targeted_pool"`
	SessionTTL       time.Duration `mapstructure:"session_ttl"`
}

// SearchConfig 自由文字搜尋設定
type SearchConfig struct {
	CuisinePageSize   int `mapstructure:"cuisine_page_size"`
	DetailConcurrency int `mapstructure:"detail_concurrency"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// .env 不存在時只使用環境變數與預設值
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定常用環境變量
	v.BindEnv("provider.api_key", "FOODOSCOPE_API_KEY")
	v.BindEnv("provider.base_url", "FOODOSCOPE_BASE_URL")
	v.BindEnv("store.driver", "DATABASE_DRIVER")
	v.BindEnv("store.dsn", "DATABASE_URL")
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("image.api_key", "IMAGE_API_KEY")
	v.BindEnv("image.base_url", "IMAGE_BASE_URL")
	v.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	v.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	v.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	v.BindEnv("log_level", "LOG_LEVEL")
	v.BindEnv("log_dir", "LOG_DIR")

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// logger 尚未初始化，改用 fmt.Println
	fmt.Println("Loading configuration", "provider_base_url:", v.GetString("provider.base_url"), "provider_api_key:", maskAPIKey(v.GetString("provider.api_key")))

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Default 回傳只含預設值的設定，測試與嵌入使用
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	_ = v.Unmarshal(&config)
	return &config
}

// maskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "meal-recommender")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "130s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "120s")

	// 供應商設定
	v.SetDefault("provider.base_url", "https://api.foodoscope.com/recipe2-api")
	v.SetDefault("provider.timeout", "15s")
	v.SetDefault("provider.page_size", 100)
	v.SetDefault("provider.max_pages", 5)
	v.SetDefault("provider.page_delay", "300ms")
	v.SetDefault("provider.populate_timeout", "90s")
	v.SetDefault("provider.search_limit", 50)
	v.SetDefault("provider.breaker_enabled", true)

	// 食譜庫設定
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "data/recipes.db")
	v.SetDefault("store.auto_migrate", true)

	// Redis 設定
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.image_ttl", "168h")

	// 圖片設定
	v.SetDefault("image.enabled", true)
	v.SetDefault("image.base_url", "https://api.pexels.com/v1")
	v.SetDefault("image.timeout", "10s")
	v.SetDefault("image.workers", 4)
	v.SetDefault("image.queue_size", 32)
	v.SetDefault("image.placeholder", "/placeholder.svg")

	// 推薦設定
	v.SetDefault("recommend.top_n", 12)
	v.SetDefault("recommend.min_strict_results", 10)
	v.SetDefault("recommend.min_targeted_pool", 5)
	v.SetDefault("recommend.session_ttl", "30m")

	// 搜尋設定
	v.SetDefault("search.cuisine_page_size", 10)
	v.SetDefault("search.detail_concurrency", 8)

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", "logs")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}
	if config.Server.RequestTimeout <= 0 {
		return fmt.Errorf("invalid server request timeout")
	}
	if config.Server.WriteTimeout > 0 && config.Server.WriteTimeout <= config.Server.RequestTimeout {
		return fmt.Errorf("server write timeout %s must exceed request timeout %s",
			config.Server.WriteTimeout, config.Server.RequestTimeout)
	}

	if config.Provider.BaseURL == "" {
		return fmt.Errorf("provider base url is required")
	}
	if config.Provider.PageSize <= 0 {
		return fmt.Errorf("invalid provider page size")
	}
	if config.Provider.MaxPages <= 0 {
		return fmt.Errorf("invalid provider max pages")
	}
	if config.Provider.PageDelay < 0 {
		return fmt.Errorf("invalid provider page delay")
	}
	if config.Provider.PopulateTimeout < 0 {
		return fmt.Errorf("invalid provider populate timeout")
	}

	switch config.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported store driver: %s", config.Store.Driver)
	}
	if config.Store.DSN == "" {
		return fmt.Errorf("store dsn is required")
	}

	if config.Image.Enabled {
		if config.Image.Workers <= 0 {
			return fmt.Errorf("invalid image workers")
		}
		if config.Image.QueueSize <= 0 {
			return fmt.Errorf("invalid image queue size")
		}
	}

	if config.Recommend.TopN <= 0 {
		return fmt.Errorf("invalid recommend top n")
	}
	if config.Recommend.MinStrictResults < 0 || config.Recommend.MinTargetedPool < 0 {
		return fmt.Errorf("invalid recommend thresholds")
	}

	if config.Search.CuisinePageSize <= 0 || config.Search.DetailConcurrency <= 0 {
		return fmt.Errorf("invalid search settings")
	}

	if config.RateLimit.Enabled && (config.RateLimit.Requests <= 0 || config.RateLimit.Window <= 0) {
		return fmt.Errorf("invalid rate limit")
	}

	return nil
}
