package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config ictrack（普查对账 HTTP API）配置
// 环境变量为主，CONFIG_FILE 指定的 YAML 文件可覆盖
type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Data struct {
		File string `yaml:"file"` // 整库 JSON 文档路径
	} `yaml:"data"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"` // 未启用时预览批次暂存退化为进程内存
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Census CensusConfig `yaml:"census"`
	EMR    EMRConfig    `yaml:"emr"`
}

// CensusConfig 普查导入配置
type CensusConfig struct {
	Units             []string `yaml:"units"`              // 单元白名单
	DuplicateSeverity string   `yaml:"duplicate_severity"` // 批内重复 MRN 级别：error|warning
	PreviewTTLMinutes int      `yaml:"preview_ttl_minutes"`
}

// EMRConfig EMR 通知配置（导入成功后向 webhook 推送汇总，默认禁用）
type EMRConfig struct {
	Enabled        bool   `yaml:"enabled"`
	WebhookURL     string `yaml:"webhook_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.Data.File = getEnv("DATA_FILE", "data/ictrack.json")

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Census.Units = splitList(getEnv("CENSUS_UNITS", "A,B,C,TCU"))
	cfg.Census.DuplicateSeverity = getEnv("CENSUS_DUPLICATE_SEVERITY", "error")
	cfg.Census.PreviewTTLMinutes = parseInt(getEnv("CENSUS_PREVIEW_TTL_MINUTES", "30"), 30)

	cfg.EMR.Enabled = getEnv("EMR_ENABLED", "false") == "true"
	cfg.EMR.WebhookURL = getEnv("EMR_WEBHOOK_URL", "")
	cfg.EMR.TimeoutSeconds = parseInt(getEnv("EMR_TIMEOUT_SECONDS", "10"), 10)

	// YAML 覆盖（部署环境把完整配置放文件里）
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
