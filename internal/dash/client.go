// Package dash is the terminal dashboard client. It reads the aggregate and
// page endpoints over HTTP and applies incremental records from the
// broadcast channel; it never computes anomaly state itself.
package dash

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vigil-ops/vigil/internal/model"
)

// Client talks to the ingestion API and its broadcast channel.
type Client struct {
	apiURL string
	wsURL  string
	http   *http.Client
}

// NewClient builds a client for the given base URLs, e.g.
// "http://localhost:3001" and "ws://localhost:3001/ws".
func NewClient(apiURL, wsURL string) *Client {
	return &Client{
		apiURL: apiURL,
		wsURL:  wsURL,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Stats fetches the trailing-window aggregate.
func (c *Client) Stats(ctx context.Context) (model.AggregateStats, error) {
	var stats model.AggregateStats
	if err := c.getJSON(ctx, c.apiURL+"/api/stats", &stats); err != nil {
		return model.AggregateStats{}, err
	}
	return stats, nil
}

// LogPage is the paginated read response.
type LogPage struct {
	Logs  []model.LogRecord `json:"logs"`
	Total int               `json:"total"`
}

// Logs fetches one page of stored records, newest first.
func (c *Client) Logs(ctx context.Context, limit, skip int) (LogPage, error) {
	var page LogPage
	url := fmt.Sprintf("%s/api/logs?limit=%d&skip=%d", c.apiURL, limit, skip)
	if err := c.getJSON(ctx, url, &page); err != nil {
		return LogPage{}, err
	}
	return page, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// event mirrors the broadcast envelope.
type event struct {
	Event string           `json:"event"`
	Data  *model.LogRecord `json:"data"`
}

// Subscribe opens the broadcast channel and streams records until the
// context is cancelled or the connection drops. The returned channel is
// closed on exit; the caller re-syncs via Logs after a drop.
func (c *Client) Subscribe(ctx context.Context) (<-chan model.LogRecord, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.wsURL, err)
	}

	records := make(chan model.LogRecord, 64)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(records)
		defer conn.Close()
		for {
			var ev event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			if ev.Event != "log" || ev.Data == nil {
				continue
			}
			select {
			case records <- *ev.Data:
			case <-ctx.Done():
				return
			}
		}
	}()

	return records, nil
}
