package config

import (
	"os"
	"strconv"
	"strings"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Kafka     KafkaConfig     `json:"kafka"`
	Logger    LoggerConfig    `json:"logger"`
	Auth      AuthConfig      `json:"auth"`
	OTP       OTPConfig       `json:"otp"`
	Orders    OrdersConfig    `json:"orders"`
	Payment   PaymentConfig   `json:"payment"`
	Notify    NotifyConfig    `json:"notify"`
	Stats     StatsConfig     `json:"stats"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

// ServerConfig представляет конфигурацию HTTP сервера
type ServerConfig struct {
	Port         string `json:"port"`
	Host         string `json:"host"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
}

// DatabaseConfig представляет конфигурацию базы данных
type DatabaseConfig struct {
	Host        string `json:"host"`
	Port        string `json:"port"`
	User        string `json:"user"`
	Password    string `json:"password"`
	DBName      string `json:"db_name"`
	SSLMode     string `json:"ssl_mode"`
	AutoMigrate bool   `json:"auto_migrate"`
}

// RedisConfig представляет конфигурацию Redis
type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// KafkaConfig представляет конфигурацию Kafka
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	GroupID string   `json:"group_id"`
	Topics  Topics   `json:"topics"`
}

// Topics представляет список топиков Kafka
type Topics struct {
	Orders        string `json:"orders"`
	Notifications string `json:"notifications"`
}

// LoggerConfig представляет конфигурацию логгера
type LoggerConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

// AuthConfig описывает параметры сессий и хеширования паролей
type AuthConfig struct {
	JWTSecret     string `json:"-"`
	TokenTTLHours int    `json:"token_ttl_hours"`
	CookieName    string `json:"cookie_name"`
	CookieSecure  bool   `json:"cookie_secure"`
	BcryptCost    int    `json:"bcrypt_cost"`
}

// OTPConfig описывает одноразовые коды
type OTPConfig struct {
	TTLMinutes  int    `json:"ttl_minutes"`
	MaxAttempts int    `json:"max_attempts"`
	KeyPrefix   string `json:"key_prefix"`
}

// OrdersConfig хранит настройки оформления заказов
type OrdersConfig struct {
	NumberPrefix            string `json:"number_prefix"`
	NumberAttempts          int    `json:"number_attempts"`
	StrictStatusTransitions bool   `json:"strict_status_transitions"`
}

// PaymentConfig выбирает платёжного провайдера
type PaymentConfig struct {
	Provider string `json:"provider"` // simulated
}

// NotifyConfig описывает доставку уведомлений
type NotifyConfig struct {
	Transport          string     `json:"transport"` // kafka | direct
	Workers            int        `json:"workers"`
	QueueSize          int        `json:"queue_size"`
	SendTimeoutSeconds int        `json:"send_timeout_seconds"`
	SiteName           string     `json:"site_name"`
	SMTP               SMTPConfig `json:"smtp"`
	SMS                SMSConfig  `json:"sms"`
}

// SMTPConfig описывает почтовый сервер
type SMTPConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"-"`
	From     string `json:"from"`
}

// SMSConfig описывает SMS-шлюз с Twilio-совместимым API
type SMSConfig struct {
	BaseURL    string `json:"base_url"`
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"-"`
	From       string `json:"from"`
}

// StatsConfig хранит настройки публичной статистики
type StatsConfig struct {
	CacheTTLMinutes int `json:"cache_ttl_minutes"`
}

// RateLimitConfig описывает настройки rate limiting
type RateLimitConfig struct {
	Enabled       bool   `json:"enabled"`
	Requests      int    `json:"requests"`
	OTPRequests   int    `json:"otp_requests"`
	WindowSeconds int    `json:"window_seconds"`
	KeyPrefix     string `json:"key_prefix"`
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "academy_user"),
			Password:    getEnv("DB_PASSWORD", "academy_pass"),
			DBName:      getEnv("DB_NAME", "course_marketplace"),
			SSLMode:     getEnv("DB_SSL_MODE", "disable"),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID: getEnv("KAFKA_GROUP_ID", "course-marketplace"),
			Topics: Topics{
				Orders:        getEnv("KAFKA_TOPIC_ORDERS", "orders"),
				Notifications: getEnv("KAFKA_TOPIC_NOTIFICATIONS", "notifications"),
			},
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", "change-me"),
			TokenTTLHours: getEnvAsInt("AUTH_TOKEN_TTL_HOURS", 24*7),
			CookieName:    getEnv("AUTH_COOKIE_NAME", "auth-token"),
			CookieSecure:  getEnvAsBool("AUTH_COOKIE_SECURE", false),
			BcryptCost:    getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		OTP: OTPConfig{
			TTLMinutes:  getEnvAsInt("OTP_TTL_MINUTES", 10),
			MaxAttempts: getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
			KeyPrefix:   getEnv("OTP_KEY_PREFIX", "otp"),
		},
		Orders: OrdersConfig{
			NumberPrefix:            getEnv("ORDER_NUMBER_PREFIX", "SA"),
			NumberAttempts:          getEnvAsInt("ORDER_NUMBER_ATTEMPTS", 5),
			StrictStatusTransitions: getEnvAsBool("ORDER_STRICT_STATUS_TRANSITIONS", false),
		},
		Payment: PaymentConfig{
			Provider: getEnv("PAYMENT_PROVIDER", "simulated"),
		},
		Notify: NotifyConfig{
			Transport:          getEnv("NOTIFY_TRANSPORT", "kafka"),
			Workers:            getEnvAsInt("NOTIFY_WORKERS", 2),
			QueueSize:          getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			SendTimeoutSeconds: getEnvAsInt("NOTIFY_SEND_TIMEOUT_SECONDS", 10),
			SiteName:           getEnv("NOTIFY_SITE_NAME", "Academy"),
			SMTP: SMTPConfig{
				Host:     getEnv("SMTP_HOST", ""),
				Port:     getEnv("SMTP_PORT", "587"),
				User:     getEnv("SMTP_USER", ""),
				Password: getEnv("SMTP_PASSWORD", ""),
				From:     getEnv("SMTP_FROM", ""),
			},
			SMS: SMSConfig{
				BaseURL:    getEnv("SMS_BASE_URL", "https://api.twilio.com"),
				AccountSID: getEnv("SMS_ACCOUNT_SID", ""),
				AuthToken:  getEnv("SMS_AUTH_TOKEN", ""),
				From:       getEnv("SMS_FROM", ""),
			},
		},
		Stats: StatsConfig{
			CacheTTLMinutes: getEnvAsInt("STATS_CACHE_TTL_MINUTES", 10),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvAsBool("RATE_LIMIT_ENABLED", false),
			Requests:      getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			OTPRequests:   getEnvAsInt("RATE_LIMIT_OTP_REQUESTS", 5),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			KeyPrefix:     getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit"),
		},
	}
}

// getEnv получает значение переменной окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt получает значение переменной окружения как int с значением по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool получает значение переменной окружения как bool с значением по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.ToLower(getEnv(key, ""))
	if valueStr == "true" || valueStr == "1" || valueStr == "yes" {
		return true
	}
	if valueStr == "false" || valueStr == "0" || valueStr == "no" {
		return false
	}
	return defaultValue
}
