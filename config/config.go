package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DBFile    string     `yaml:"db_file"`
	Bucket    string     `yaml:"bucket"`
	Output    string     `yaml:"output"`
	LogFile   string     `yaml:"log_file"`
	LogFormat string     `yaml:"log_format"`
	LogLevel  *int       `yaml:"log_level"`
	Mmap      MmapConfig `yaml:"mmap"`
}

type MmapConfig struct {
	Prefault   bool `yaml:"prefault"`
	Sequential bool `yaml:"sequential"`
}

// Load 读取 yaml 配置, 文件里没有写的字段保持零值
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	config := &Config{}
	if err := yaml.Unmarshal(b, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	switch config.Output {
	case "", "text", "msgpack":
	default:
		return nil, fmt.Errorf("parsing config file: unknown output format %q", config.Output)
	}
	return config, nil
}
