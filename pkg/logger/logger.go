package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 全局日志记录器实例，InitLogger 之前为 Nop，避免测试和库代码中出现空指针
var L = zap.NewNop()

// `level`可以是“debug”、“info”、“warn”、“error”、“fatal”、“panic”。
// `isProduction`确定日志记录器是否使用JSON格式(生产)或控制台格式(开发)。
func InitLogger(level string, isProduction bool) error {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel // 如果解析失败，则默认为Info级别
		fmt.Fprintf(os.Stderr, "Warning: Invalid log level '%s', using default 'info'. Error: %v\n", level, err)
	}

	var cfg zap.Config
	if isProduction {
		// 生产日志记录器：JSON格式
		cfg = zap.NewProductionConfig()
	} else {
		// 开发日志记录器：人类可读的控制台格式
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder // 彩色级别输出
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	built, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize zap logger: %w", err)
	}
	L = built

	L.Info("Zap logger initialized", zap.String("level", zapLevel.String()), zap.Bool("productionMode", isProduction))
	return nil
}

// Named 返回带有组件名称的子日志记录器
func Named(component string) *zap.Logger {
	return L.Named(component)
}

// Sync刷新任何缓冲的日志条目。
// 建议在应用程序退出之前调用它。
func Sync() {
	if L != nil {
		_ = L.Sync()
	}
}
