package store

import (
	"io/fs"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_messages_created_total",
		Help: "Messages persisted by the store.",
	})
	messagesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_messages_deleted_total",
		Help: "Messages tombstoned by soft delete.",
	})
	reactionsToggled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_reactions_toggled_total",
		Help: "Reaction toggle operations applied.",
	})
	seenTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_seen_transitions_total",
		Help: "Messages transitioned from unseen to seen.",
	})
	dbBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatrelay_store_bytes",
		Help: "Best-effort on-disk size of the pebble directory.",
	})
)

// RefreshGauges recomputes the best-effort store gauges. Called by the
// maintenance sweep rather than on a hot path.
func RefreshGauges() {
	if db == nil || dbPath == "" {
		return
	}
	var total int64
	_ = filepath.WalkDir(dbPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += fi.Size()
		}
		return nil
	})
	dbBytes.Set(float64(total))
}
