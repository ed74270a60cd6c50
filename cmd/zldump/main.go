package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/pengdafu/rdb-encoding/config"
	"github.com/pengdafu/rdb-encoding/logging"
)

var (
	configFile = flag.String("config", "", "Path to the config file")
	inputFile  = flag.String("file", "", "File holding a single encoded container")
	typeName   = flag.String("type", "", "Container type of -file: list, hash, set, zset, hash-zipmap or the RDB type number")
	dbFile     = flag.String("db", "", "Blob store to read from, or to write to with -import")
	bucket     = flag.String("bucket", "", "Bucket in the blob store")
	key        = flag.String("key", "", "Dump only this key from the blob store")
	importKey  = flag.String("import", "", "Store -file in the blob store under this key instead of dumping it")
	format     = flag.String("format", "text", "Output format, 'text' or 'msgpack'")
	prefault   = flag.Bool("prefault", false, "Read the whole input file into memory when mapping it")
	logFile    = flag.String("log-file", "", "File to write the logs to. Will use stderr if not set")
	logFormat  = flag.String("log-format", "text", "Log entry format, 'text' or 'json'.")
	logLevel   = flag.Int("log-level", 1, "Log level. 0 - debug, 1 - info, 3 - error")
)

// settings 合并配置文件和命令行, 命令行上显式给出的参数优先
func settings() (*options, error) {
	opts := &options{
		File:      *inputFile,
		Type:      *typeName,
		DBFile:    *dbFile,
		Bucket:    *bucket,
		Key:       *key,
		ImportKey: *importKey,
		Format:    *format,
		Prefault:  *prefault,
		LogFile:   *logFile,
		LogFormat: *logFormat,
		LogLevel:  zerolog.Level(*logLevel),
	}
	if *configFile == "" {
		return opts, opts.check()
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if !set["db"] && cfg.DBFile != "" {
		opts.DBFile = cfg.DBFile
	}
	if !set["bucket"] && cfg.Bucket != "" {
		opts.Bucket = cfg.Bucket
	}
	if !set["format"] && cfg.Output != "" {
		opts.Format = cfg.Output
	}
	if !set["prefault"] {
		opts.Prefault = cfg.Mmap.Prefault
	}
	opts.Sequential = cfg.Mmap.Sequential
	if !set["log-file"] && cfg.LogFile != "" {
		opts.LogFile = cfg.LogFile
	}
	if !set["log-format"] && cfg.LogFormat != "" {
		opts.LogFormat = cfg.LogFormat
	}
	if !set["log-level"] && cfg.LogLevel != nil {
		opts.LogLevel = zerolog.Level(*cfg.LogLevel)
	}
	return opts, opts.check()
}

func main() {
	flag.Parse()

	opts, err := settings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "zldump: %s\n", err)
		os.Exit(2)
	}

	ctx, err := logging.Setup(context.Background(), opts.LogFile, opts.LogFormat, opts.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zldump: %s\n", err)
		os.Exit(2)
	}
	log := zerolog.Ctx(ctx)

	if err := runMain(ctx, opts, os.Stdout); err != nil {
		log.Fatal().Err(err).Msgf("%s", err)
	}
}
