package live

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_events_pushed_total",
		Help: "Events enqueued onto a live session, by kind.",
	}, []string{"event"})
	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_events_dropped_total",
		Help: "Events dropped because a session buffer was full, by kind.",
	}, []string{"event"})
)
