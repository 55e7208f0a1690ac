package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/annfeed/internal/flagx"
	"github.com/dmitrijs2005/annfeed/internal/timex"
)

// JsonConfig is the on-disk shape of the -c/-config file. Durations accept
// "10s" style strings or integer nanoseconds. Absent fields keep the value
// from earlier sources.
type JsonConfig struct {
	GRPCAddr           string         `json:"grpc_addr"`
	HTTPAddr           string         `json:"http_addr"`
	DatabaseDSN        string         `json:"database_dsn"`
	LogLevel           string         `json:"log_level"`
	SecretKey          string         `json:"secret_key"`
	AdminTokenValidity timex.Duration `json:"admin_token_validity"`
	FetchTimeout       timex.Duration `json:"fetch_timeout"`
	RefreshThreshold   timex.Duration `json:"refresh_threshold"`
	RefreshConcurrency int            `json:"refresh_concurrency"`
	RefreshLanguages   []string       `json:"refresh_languages"`
	ScheduleTimes      []string       `json:"schedule_times"`
	ScheduleTimezone   string         `json:"schedule_timezone"`
	KuroListURL        string         `json:"kuro_list_url"`
	CacheTTL           timex.Duration `json:"cache_ttl"`
	CacheBackend       string         `json:"cache_backend"`
	RedisURL           string         `json:"redis_url"`
	ArchiveEnabled     *bool          `json:"archive_enabled"`
	S3Bucket           string         `json:"s3_bucket"`
	S3Region           string         `json:"s3_region"`
	S3AccessKey        string         `json:"s3_access_key"`
	S3SecretKey        string         `json:"s3_secret_key"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint"`
	CORSOrigins        []string       `json:"cors_origins"`
}

func parseJson(config *Config) error {
	path := flagx.ConfigPath(os.Args[1:])
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AdminTokenValidity, c.AdminTokenValidity)
	setDuration(&config.FetchTimeout, c.FetchTimeout)
	setDuration(&config.RefreshThreshold, c.RefreshThreshold)
	if c.RefreshConcurrency != 0 {
		config.RefreshConcurrency = c.RefreshConcurrency
	}
	setSlice(&config.RefreshLanguages, c.RefreshLanguages)
	setSlice(&config.ScheduleTimes, c.ScheduleTimes)
	setString(&config.ScheduleTimezone, c.ScheduleTimezone)
	setString(&config.KuroListURL, c.KuroListURL)
	setDuration(&config.CacheTTL, c.CacheTTL)
	setString(&config.CacheBackend, c.CacheBackend)
	setString(&config.RedisURL, c.RedisURL)
	if c.ArchiveEnabled != nil {
		config.ArchiveEnabled = *c.ArchiveEnabled
	}
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setSlice(&config.CORSOrigins, c.CORSOrigins)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}

func setSlice(dst *[]string, v []string) {
	if len(v) > 0 {
		*dst = v
	}
}
