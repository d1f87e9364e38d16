package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Storage struct {
		Root string
	}
	Daemon struct {
		URL      string
		Username string
		Password string
	}
	Redis struct {
		Addr           string
		DialTimeout    time.Duration
		ReadTimeout    time.Duration
		WriteTimeout   time.Duration
		MaxIdleConns   int
		MaxActiveConns int
	}
	Reconcile struct {
		Interval time.Duration
	}
	Transcode struct {
		FFprobeBin   string
		FFmpegBin    string
		PollInterval time.Duration
	}
	Auth struct {
		RegisterPassword string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("SEEDBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.path", "data/seedbox.db")
	v.SetDefault("storage.root", "data")
	v.SetDefault("daemon.url", "http://transmission:9091/transmission/rpc")
	v.SetDefault("daemon.username", "admin")
	v.SetDefault("daemon.password", "admin")
	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("redis.dialtimeout", 5*time.Second)
	v.SetDefault("redis.readtimeout", 30*time.Second)
	v.SetDefault("redis.writetimeout", 30*time.Second)
	v.SetDefault("redis.maxidleconns", 5)
	v.SetDefault("redis.maxactiveconns", 20)
	v.SetDefault("reconcile.interval", 5*time.Second)
	v.SetDefault("transcode.ffprobebin", "/usr/bin/ffprobe")
	v.SetDefault("transcode.ffmpegbin", "/usr/bin/ffmpeg")
	v.SetDefault("transcode.pollinterval", 250*time.Millisecond)
	v.SetDefault("auth.registerpassword", "")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
