package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	DB     DBConfig
	JWT    JWTConfig
	Log    LogConfig
	Debate DebateConfig
}

type ServerConfig struct {
	Address string
}

type DBConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     int
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

type JWTConfig struct {
	Secret string
}

type LogConfig struct {
	Level string
}

// DebateConfig 控制辯論流程的各項時間參數
type DebateConfig struct {
	TurnTimeout     time.Duration `mapstructure:"turn_timeout"`     // 每回合發言時限
	DeletionGrace   time.Duration `mapstructure:"deletion_grace"`   // 強制結束後到刪除房間的緩衝時間
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`   // 刪除排程的掃描間隔
	DuplicateWindow time.Duration `mapstructure:"duplicate_window"` // 聊天重複訊息的判定時間窗
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./pkg/config")

	viper.SetDefault("db.sslmode", "disable")
	viper.SetDefault("db.timezone", "Asia/Taipei")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("debate.turn_timeout", "300s")
	viper.SetDefault("debate.deletion_grace", "3m")
	viper.SetDefault("debate.sweep_interval", "60s")
	viper.SetDefault("debate.duplicate_window", "3s")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
