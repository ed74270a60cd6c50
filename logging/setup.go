package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Setup 创建全局 logger 并放进 ctx。format 是 "json" 或者 "text", logfile 为空时写到 stderr。
// zldump 默认用 text 格式写 stderr, 这样 -format msgpack 写到 stdout 的输出不会混进日志。
// 库代码通过 zerolog.Ctx 取 logger, 没有调用 Setup 时得到的是 DefaultContextLogger 或者 disabled logger。
func Setup(ctx context.Context, logfile string, format string, level zerolog.Level) (context.Context, error) {
	var logFile io.Writer = os.Stderr

	if logfile != "" {
		f, err := os.OpenFile(logfile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return ctx, fmt.Errorf("opening log file %q: %w", logfile, err)
		}
		logFile = f
	}

	output, err := newOutput(logFile, format)
	if err != nil {
		return ctx, err
	}

	logger := zerolog.New(output).Level(level).With().Caller().Timestamp().Logger()

	ctx = logger.WithContext(ctx)

	zerolog.DefaultContextLogger = &logger
	log.SetOutput(logger)

	return ctx, nil
}

// newOutput json 直接输出; text 用 ConsoleWriter, caller 去掉模块路径前缀只保留包内路径
func newOutput(w io.Writer, format string) (io.Writer, error) {
	switch format {
	case "json":
		return w, nil
	case "text":
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	prefixList := []string{}
	info, ok := debug.ReadBuildInfo()
	if ok {
		prefixList = append(prefixList, info.Path+"/")
	}

	basedir := ""
	_, sourceFile, _, ok := runtime.Caller(0)
	if ok {
		basedir = filepath.Dir(sourceFile)
	}

	if basedir != "" && strings.HasPrefix(basedir, "/") {
		prefixList = append(prefixList, basedir+"/")
		head, _ := filepath.Split(basedir)
		for head != "/" {
			prefixList = append(prefixList, head)
			head, _ = filepath.Split(strings.TrimSuffix(head, "/"))
		}
	}

	return zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: time.RFC3339,
		PartsOrder: []string{
			zerolog.LevelFieldName,
			zerolog.TimestampFieldName,
			zerolog.CallerFieldName,
			zerolog.MessageFieldName,
		},
		FormatFieldName:  func(i interface{}) string { return fmt.Sprintf("%s:", i) },
		FormatFieldValue: func(i interface{}) string { return fmt.Sprintf("%s", i) },
		FormatCaller: func(i interface{}) string {
			s := i.(string)
			for _, p := range prefixList {
				s = strings.TrimPrefix(s, p)
			}
			return s
		},
	}, nil
}
