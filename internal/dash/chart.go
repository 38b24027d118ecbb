package dash

import (
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"
	"github.com/vigil-ops/vigil/internal/model"
)

const (
	chartHeight  = 4
	chartBuckets = 30
	bucketSize   = time.Minute
)

var (
	normalBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).Background(lipgloss.Color("39"))
	anomalyBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).Background(lipgloss.Color("196"))
)

// renderAnomalyChart draws per-minute record counts as stacked bars, anomalous
// counts on top of normal ones, newest bucket on the right.
func (m *DashboardModel) renderAnomalyChart() string {
	if len(m.records) == 0 {
		return dimStyle.Render("no traffic")
	}

	width := m.width - 6
	if width < 20 {
		width = 20
	}
	buckets := width / 2
	if buckets > chartBuckets {
		buckets = chartBuckets
	}

	type bucket struct {
		normal  int
		anomaly int
	}
	counts := make([]bucket, buckets)

	newest := time.Now().Truncate(bucketSize)
	for _, r := range m.records {
		age := int(newest.Sub(r.Timestamp.Truncate(bucketSize)) / bucketSize)
		if age < 0 || age >= buckets {
			continue
		}
		idx := buckets - 1 - age
		if r.IsAnomaly {
			counts[idx].anomaly++
		} else {
			counts[idx].normal++
		}
	}

	bc := barchart.New(buckets*2, chartHeight,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(1),
		barchart.WithNoAxis(),
	)

	for _, b := range counts {
		var values []barchart.BarValue
		if b.normal > 0 {
			values = append(values, barchart.BarValue{
				Name: model.SeverityInfo, Value: float64(b.normal), Style: normalBarStyle,
			})
		}
		if b.anomaly > 0 {
			values = append(values, barchart.BarValue{
				Name: "ANOMALY", Value: float64(b.anomaly), Style: anomalyBarStyle,
			})
		}
		if len(values) == 0 {
			values = append(values, barchart.BarValue{Name: "EMPTY", Value: 0, Style: dimStyle})
		}
		bc.Push(barchart.BarData{Label: "", Values: values})
	}

	bc.Draw()
	return bc.View()
}
