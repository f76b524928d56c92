package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel 日志级别
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// LogConfig 由 config.LogConfig 实现，避免 logger 反向依赖 config
type LogConfig interface {
	GetLevel() string
	GetOutput() string
	GetFile() string
}

// RotateConfig 日志文件轮转配置
type RotateConfig struct {
	Filename   string // 日志文件路径
	MaxSize    int    // 单个文件最大 MB
	MaxBackups int    // 保留的旧文件数量
	MaxAge     int    // 保留天数
	Compress   bool
}

// Logger 对 zap 的薄封装，统一使用格式化字符串
type Logger struct {
	zapLogger *zap.Logger
}

var defaultLogger *Logger

func init() {
	defaultLogger = newLogger(INFO, zapcore.Lock(os.Stdout))
}

// Init 按配置初始化全局日志器
func Init(cfg LogConfig) error {
	level := ParseLogLevel(cfg.GetLevel())

	switch strings.ToLower(cfg.GetOutput()) {
	case "", "stdout":
		SetDefaultLogger(newLogger(level, zapcore.Lock(os.Stdout)))
	case "stderr":
		SetDefaultLogger(newLogger(level, zapcore.Lock(os.Stderr)))
	case "file":
		if cfg.GetFile() == "" {
			return fmt.Errorf("log output is file but no file configured")
		}
		SetDefaultLogger(NewWithRotation(level, RotateConfig{Filename: cfg.GetFile(), Compress: true}))
	default:
		return fmt.Errorf("unknown log output %q", cfg.GetOutput())
	}
	return nil
}

// NewWithRotation 创建写入轮转文件的日志器
func NewWithRotation(level LogLevel, cfg RotateConfig) *Logger {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 100
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 3
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 28
	}
	return newLogger(level, zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}))
}

func newLogger(level LogLevel, out zapcore.WriteSyncer) *Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05"))
	}
	encoderCfg.CallerKey = "caller"
	encoderCfg.EncodeCaller = zapcore.ShortCallerEncoder
	encoderCfg.LevelKey = "level"
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderCfg.MessageKey = "message"

	var encoder zapcore.Encoder
	if level == DEBUG {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}
	core := zapcore.NewCore(encoder, out, zap.NewAtomicLevelAt(zapLevel(level)))
	return &Logger{zapLogger: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))}
}

// NewNop 丢弃所有输出，测试中使用
func NewNop() *Logger {
	return &Logger{zapLogger: zap.NewNop()}
}

// Debug 调试日志
func (l *Logger) Debug(format string, args ...interface{}) {
	l.zapLogger.Debug(fmt.Sprintf(format, args...))
}

// Info 信息日志
func (l *Logger) Info(format string, args ...interface{}) {
	l.zapLogger.Info(fmt.Sprintf(format, args...))
}

// Warn 警告日志
func (l *Logger) Warn(format string, args ...interface{}) {
	l.zapLogger.Warn(fmt.Sprintf(format, args...))
}

// Error 错误日志
func (l *Logger) Error(format string, args ...interface{}) {
	l.zapLogger.Error(fmt.Sprintf(format, args...))
}

// Fatal 致命错误日志
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.zapLogger.Fatal(fmt.Sprintf(format, args...))
}

// Sync 刷新缓冲
func (l *Logger) Sync() {
	_ = l.zapLogger.Sync()
}

// With 添加字段
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zapLogger: l.zapLogger.With(fields...)}
}

// Zap 底层 zap logger，供 gin 等组件接入
func (l *Logger) Zap() *zap.Logger {
	return l.zapLogger
}

// SetDefaultLogger 替换全局日志器
func SetDefaultLogger(l *Logger) {
	if defaultLogger != nil {
		defaultLogger.Sync()
	}
	defaultLogger = l
}

func Debug(format string, args ...interface{}) {
	defaultLogger.Debug(format, args...)
}

func Info(format string, args ...interface{}) {
	defaultLogger.Info(format, args...)
}

func Warn(format string, args ...interface{}) {
	defaultLogger.Warn(format, args...)
}

func Error(format string, args ...interface{}) {
	defaultLogger.Error(format, args...)
}

func Fatal(format string, args ...interface{}) {
	defaultLogger.Fatal(format, args...)
}

func Sync() {
	defaultLogger.Sync()
}

func With(fields ...zap.Field) *Logger {
	return defaultLogger.With(fields...)
}

// Default 全局日志器
func Default() *Logger {
	return defaultLogger
}

// ParseLogLevel 解析日志级别字符串，未知值按 info 处理
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
