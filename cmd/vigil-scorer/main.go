// Command vigil-scorer consumes raw log entries from the transport queue,
// classifies them with the heuristic fallback scorer, and POSTs the enriched
// record to the ingestion API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"github.com/vigil-ops/vigil/internal/mq"
	"github.com/vigil-ops/vigil/internal/scorer"
)

type scorerConfig struct {
	AMQPURL    string `mapstructure:"amqp-url"`
	Queue      string `mapstructure:"queue"`
	BackendURL string `mapstructure:"backend-url"`
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

func loadConfig() (scorerConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("VIGIL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("amqp-url", mq.DefaultURL)
	v.SetDefault("queue", mq.DefaultQueue)
	v.SetDefault("backend-url", "http://localhost:3001")

	var cfg scorerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg scorerConfig) error {
	queue, err := mq.Dial(ctx, cfg.AMQPURL, cfg.Queue)
	if err != nil {
		return err
	}
	defer queue.Close()

	deliveries, err := queue.Consume()
	if err != nil {
		return err
	}

	log.Printf("scorer: consuming %q, posting to %s", cfg.Queue, cfg.BackendURL)

	s := scorer.New()
	client := &http.Client{Timeout: 10 * time.Second}
	ingestURL := strings.TrimRight(cfg.BackendURL, "/") + "/api/logs"

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			var entry map[string]any
			if err := json.Unmarshal(d.Body, &entry); err != nil {
				log.Printf("scorer: dropping malformed entry: %v", err)
				d.Ack(false)
				continue
			}

			result := s.Analyze(entry)
			if err := postResult(ctx, client, ingestURL, result); err != nil {
				log.Printf("scorer: post: %v", err)
				// The entry was consumed and scored; a backend hiccup is
				// its problem to surface, not a reason to redeliver.
			}
			d.Ack(false)
		}
	}
}

func postResult(ctx context.Context, client *http.Client, url string, result scorer.Result) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("backend returned %s", resp.Status)
	}
	return nil
}
