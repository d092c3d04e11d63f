package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "croco_messages_total",
		Help: "User messages accepted by the gateway.",
	})
	sendFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "croco_send_failures_total",
		Help: "Sends that ended with a user-visible error.",
	})
	avatarUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "croco_avatar_updates_total",
		Help: "Avatar updates through the gateway.",
	})
)
