// Command vigil-producer emits synthetic MongoDB-style log entries to the
// transport queue on an interval. It stands in for a real mongod tailer in
// development and demo stacks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"github.com/vigil-ops/vigil/internal/mongolog"
	"github.com/vigil-ops/vigil/internal/mq"
)

type producerConfig struct {
	AMQPURL  string        `mapstructure:"amqp-url"`
	Queue    string        `mapstructure:"queue"`
	Interval time.Duration `mapstructure:"interval"`
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (producerConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("VIGIL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("amqp-url", mq.DefaultURL)
	v.SetDefault("queue", mq.DefaultQueue)
	v.SetDefault("interval", 2*time.Second)

	var cfg producerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if cfg.Interval <= 0 {
		return cfg, fmt.Errorf("invalid interval: %s", cfg.Interval)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg producerConfig) error {
	queue, err := mq.Dial(ctx, cfg.AMQPURL, cfg.Queue)
	if err != nil {
		return err
	}
	defer queue.Close()

	log.Printf("producer: connected, publishing to %q every %s", cfg.Queue, cfg.Interval)

	gen := mongolog.New()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	published := 0
	for {
		select {
		case <-ctx.Done():
			log.Printf("producer: stopping after %d entries", published)
			return nil
		case <-ticker.C:
			entry := gen.Next()
			body, err := json.Marshal(entry)
			if err != nil {
				log.Printf("producer: marshal entry: %v", err)
				continue
			}
			if err := queue.Publish(ctx, body); err != nil {
				return err
			}
			published++
		}
	}
}
