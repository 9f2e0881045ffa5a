// internal/utils/logger/config.go
package logger

// Config - консоль плюс JSON файл с ротацией через lumberjack
type Config struct {
	// Пустой LogFile - только консоль
	LogFile    string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool

	Development bool
	// Консоль в stderr: stdout остается для JSON ответов CLI
	Stderr bool
}

func DefaultConfig() *Config {
	return &Config{
		LogFile:    "medchain.log",
		MaxSizeMB:  50,
		MaxAgeDays: 14,
		MaxBackups: 5,
		Compress:   true,
	}
}
