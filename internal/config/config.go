package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"Server"`
	Database DatabaseConfig `mapstructure:"Database"`
}

type ServerConfig struct {
	Port            string `mapstructure:"Port"`
	UploadDir       string `mapstructure:"UploadDir"`
	MediaDir        string `mapstructure:"MediaDir"`
	Python          string `mapstructure:"Python"`
	ValidateTimeout string `mapstructure:"ValidateTimeout"`
	StrictPartial   bool   `mapstructure:"StrictPartial"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"Host"`
	Port     string `mapstructure:"Port"`
	User     string `mapstructure:"User"`
	Password string `mapstructure:"Password"`
	Name     string `mapstructure:"Name"`
	SSLMode  string `mapstructure:"SSLMode"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()

	// Устанавливаем файл конфигурации
	v.SetConfigFile(path)

	// Привязываем переменные окружения
	v.BindEnv("Database.Host", "DATABASE_HOST")
	v.BindEnv("Database.Port", "DATABASE_PORT")
	v.BindEnv("Database.User", "DATABASE_USER")
	v.BindEnv("Database.Password", "DATABASE_PASSWORD")
	v.BindEnv("Database.Name", "DATABASE_NAME")
	v.BindEnv("Database.SSLMode", "DATABASE_SSLMODE")
	v.BindEnv("Server.Port", "HTTP_PORT")
	v.BindEnv("Server.UploadDir", "UPLOAD_DIR")
	v.BindEnv("Server.MediaDir", "MEDIA_DIR")
	v.BindEnv("Server.Python", "PYTHON_BIN")
	v.BindEnv("Server.ValidateTimeout", "VALIDATE_TIMEOUT")
	v.BindEnv("Server.StrictPartial", "STRICT_PARTIAL")

	// Читаем конфигурацию из файла
	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Проверяем переменные окружения напрямую если конфигурация неполная
	if cfg.Database.Host == "" {
		cfg.Database.Host = v.GetString("DATABASE_HOST")
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = v.GetString("DATABASE_PORT")
	}
	if cfg.Database.User == "" {
		cfg.Database.User = v.GetString("DATABASE_USER")
	}
	if cfg.Database.Password == "" {
		cfg.Database.Password = v.GetString("DATABASE_PASSWORD")
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = v.GetString("DATABASE_NAME")
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = v.GetString("DATABASE_SSLMODE")
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = v.GetString("HTTP_PORT")
	}

	// Проверяем, что все необходимые поля заполнены
	if cfg.Database.Host == "" ||
		cfg.Database.Port == "" ||
		cfg.Database.User == "" ||
		cfg.Database.Password == "" ||
		cfg.Database.Name == "" {
		return nil, fmt.Errorf("database configuration is incomplete: host=%s, port=%s, user=%s, name=%s",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Name)
	}

	// Установка значений по умолчанию
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "3535"
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = "./data/uploads"
	}
	if cfg.Server.MediaDir == "" {
		cfg.Server.MediaDir = "./data/media"
	}
	if cfg.Server.Python == "" {
		cfg.Server.Python = "python3"
	}
	if cfg.Server.ValidateTimeout == "" {
		cfg.Server.ValidateTimeout = "120s"
	}
	if _, err := time.ParseDuration(cfg.Server.ValidateTimeout); err != nil {
		return nil, fmt.Errorf("invalid ValidateTimeout: %w", err)
	}

	return &cfg, nil
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

// GetValidateTimeout возвращает лимит времени одной попытки валидации
func (c *ServerConfig) GetValidateTimeout() time.Duration {
	d, err := time.ParseDuration(c.ValidateTimeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}
