// Command vigil-dash is a terminal dashboard for the anomaly monitor. It
// polls the aggregate endpoint, loads the recent page once, and applies
// records from the broadcast channel as they arrive.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/viper"
	"github.com/vigil-ops/vigil/internal/dash"
	"github.com/vigil-ops/vigil/internal/model"
)

type dashConfig struct {
	APIURL       string        `mapstructure:"api-url"`
	WSURL        string        `mapstructure:"ws-url"`
	PollInterval time.Duration `mapstructure:"poll-interval"`
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	client := dash.NewClient(cfg.APIURL, cfg.WSURL)
	program := tea.NewProgram(
		dash.NewDashboardModel(client, cfg.PollInterval),
		tea.WithAltScreen(),
	)

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (dashConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("VIGIL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("api-url", "http://localhost:3001")
	v.SetDefault("poll-interval", model.DefaultPollInterval)

	var cfg dashConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.WSURL == "" {
		ws := strings.Replace(cfg.APIURL, "http://", "ws://", 1)
		ws = strings.Replace(ws, "https://", "wss://", 1)
		cfg.WSURL = ws + "/ws"
	}
	return cfg, nil
}
