package metrics

import (
	"path"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	storage tstorage.Storage
	mu      sync.RWMutex

	// HTTPRequests counts admin api calls by method, route and status
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hms",
		Name:      "http_requests_total",
		Help:      "Admin API requests",
	}, []string{"method", "route", "status"})

	// DomainEvents counts published domain events by topic
	DomainEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hms",
		Name:      "domain_events_total",
		Help:      "Domain events published",
	}, []string{"topic"})

	gauges = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "hms",
		Name:      "gauge",
		Help:      "Sampled application gauges",
	}, []string{"name"})

	Registry = prometheus.NewRegistry()
)

func init() {
	Registry.MustRegister(HTTPRequests, DomainEvents, gauges)
}

// InitMetrics opens the time-series store under <workdir>/data/metrics
func InitMetrics(workdir string) error {
	mu.Lock()
	defer mu.Unlock()
	if storage != nil {
		return nil
	}
	s, err := tstorage.NewStorage(
		tstorage.WithDataPath(path.Join(workdir, "data", "metrics")),
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithRetention(7*24*time.Hour),
	)
	if err != nil {
		return err
	}
	storage = s
	return nil
}

// SetGauge records a sample now and mirrors it to prometheus
func SetGauge(name string, value int64) {
	gauges.WithLabelValues(name).Set(float64(value))
	mu.RLock()
	defer mu.RUnlock()
	if storage == nil {
		return
	}
	_ = storage.InsertRows([]tstorage.Row{{
		Metric:    name,
		DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: float64(value)},
	}})
}

type Point struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// Query returns samples of name between start and end
func Query(name string, start, end time.Time) ([]Point, error) {
	mu.RLock()
	defer mu.RUnlock()
	if storage == nil {
		return []Point{}, nil
	}
	pts, err := storage.Select(name, nil, start.Unix(), end.Unix())
	if err == tstorage.ErrNoDataPoints {
		return []Point{}, nil
	}
	if err != nil {
		return nil, err
	}
	result := make([]Point, 0, len(pts))
	for _, p := range pts {
		result = append(result, Point{Time: p.Timestamp, Value: p.Value})
	}
	return result, nil
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if storage == nil {
		return nil
	}
	err := storage.Close()
	storage = nil
	return err
}
