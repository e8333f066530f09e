// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	YooKassa                `yaml:"yookassa"`
	Receipts                `yaml:"receipts"`
	SMTP                    `yaml:"smtp"`
	Rabbit                  `yaml:"rabbit"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:"0.0.0.0:8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"5s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для работы с парой jwt-токенов.
// Access и refresh токены подписываются разными секретами
// и имеют независимые сроки жизни.
type JWTToken struct {
	AccessSecretKey  string        `yaml:"access_secret_key" env:"JWT_ACCESS_SECRET"`
	RefreshSecretKey string        `yaml:"refresh_secret_key" env:"JWT_REFRESH_SECRET"`
	AccessTokenTTL   time.Duration `yaml:"access_token_ttl" env-default:"15m"`
	RefreshTokenTTL  time.Duration `yaml:"refresh_token_ttl" env-default:"720h"`
}

// YooKassa структура для настройки платёжного шлюза.
// DemoMode — явный переключатель демо-выдачи подписок: демо-платежи
// разрешены только когда он включён, независимо от наличия ключей шлюза.
type YooKassa struct {
	ShopID    string        `yaml:"shop_id" env:"YOOKASSA_SHOP_ID"`
	SecretKey string        `yaml:"secret_key" env:"YOOKASSA_SECRET_KEY"`
	APIURL    string        `yaml:"api_url" env-default:"https://api.yookassa.ru/v3"`
	Timeout   time.Duration `yaml:"timeout" env-default:"10s"`
	DemoMode  bool          `yaml:"demo_mode" env:"YOOKASSA_DEMO_MODE" env-default:"false"`
}

// Receipts структура для настройки проверки чеков мобильных магазинов.
type Receipts struct {
	AppleSharedSecret string        `yaml:"apple_shared_secret" env:"APPLE_SHARED_SECRET"`
	GoogleCredentials string        `yaml:"google_credentials" env:"GOOGLE_APPLICATION_CREDENTIALS"`
	AndroidPackage    string        `yaml:"android_package" env:"ANDROID_PACKAGE_NAME"`
	Timeout           time.Duration `yaml:"timeout" env-default:"10s"`
}

// SMTP структура для настройки отправки писем с кодом подтверждения.
type SMTP struct {
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort string `yaml:"smtp_port"`
	SMTPUser string `yaml:"smtp_user"`
	SMTPPass string `yaml:"smtp_pass" env:"SMTP_PASS"`
}

// Rabbit структура для настройки подключения к RabbitMQ.
type Rabbit struct {
	RabbitURL string `yaml:"rabbit_url" env:"RABBIT_URL"`
	PushQueue string `yaml:"push_queue" env-default:"push-notifications"`
}

// MustLoad функция для загрузки конфига, путь берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
