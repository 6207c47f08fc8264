package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rsuppersahabatan/baileys-api/internal/bus"
	"github.com/rsuppersahabatan/baileys-api/internal/store"
)

var (
	chatsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "baileysd_store_chats",
		Help: "Chats currently indexed",
	})
	messagesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "baileysd_store_messages",
		Help: "Messages currently retained across all chats",
	})
	contactsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "baileysd_store_contacts",
		Help: "Contacts currently indexed",
	})
	groupsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "baileysd_store_groups",
		Help: "Group metadata entries currently indexed",
	})
	syncingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "baileysd_sync_in_progress",
		Help: "1 while a bulk history sync is running",
	})
	lastSavedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "baileysd_store_last_saved_timestamp_ms",
		Help: "Unix milliseconds of the last successful snapshot write",
	})
	savesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "baileysd_store_saves_total",
		Help: "Snapshot save attempts by status",
	}, []string{"status"})
	messagesAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "baileysd_store_messages_added_total",
		Help: "Messages ingested into the store",
	})
	historyBatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "baileysd_history_batches_total",
		Help: "History sync batches processed",
	})
)

// Collector keeps the Prometheus gauges in step with the store by watching
// its event stream.
type Collector struct {
	st     *store.Store
	bus    *bus.Bus
	logger *zap.Logger

	mu     sync.Mutex
	unsub  func()
	cancel context.CancelFunc
	done   chan struct{}
}

func NewCollector(st *store.Store, b *bus.Bus, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{st: st, bus: b, logger: logger}
}

// Start subscribes to all bus events and updates metrics until Stop.
func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	events, unsub := c.bus.Subscribe("", 256)
	c.cancel = cancel
	c.unsub = unsub
	c.done = make(chan struct{})

	c.refresh()
	go func() {
		defer close(c.done)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				c.observe(evt)
			}
		}
	}()
}

// Stop unsubscribes and waits for the update loop to exit.
func (c *Collector) Stop() {
	c.mu.Lock()
	unsub, cancel, done := c.unsub, c.cancel, c.done
	c.unsub, c.cancel, c.done = nil, nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	unsub()
	<-done
}

func (c *Collector) observe(evt bus.Event) {
	switch evt.Kind {
	case bus.KindStoreSaved:
		savesTotal.WithLabelValues("ok").Inc()
	case bus.KindStoreError:
		savesTotal.WithLabelValues("error").Inc()
	case bus.KindMessageAdded:
		messagesAddedTotal.Inc()
	case bus.KindHistoryProcessed:
		historyBatchesTotal.Inc()
	}
	c.refresh()
}

func (c *Collector) refresh() {
	stats := c.st.Stats()
	chatsGauge.Set(float64(stats.Chats))
	messagesGauge.Set(float64(stats.Messages))
	contactsGauge.Set(float64(stats.Contacts))
	groupsGauge.Set(float64(stats.Groups))
	lastSavedGauge.Set(float64(stats.LastSaved))
	if stats.SyncInProgress {
		syncingGauge.Set(1)
	} else {
		syncingGauge.Set(0)
	}
}

// Serve exposes /metrics on addr. Returns the server so the caller can shut
// it down.
func Serve(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return srv
}
