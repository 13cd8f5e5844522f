package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		usersRegisteredTotal,
		telegramCommandsReceivedTotal,
		telegramRateLimitTriggeredTotal,
		telegramSendErrorsTotal,
	)
}

var (
	usersRegisteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "users_registered_total",
			Help: "Users that completed the registration dialogue.",
		},
	)

	telegramCommandsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_commands_received_total",
			Help: "Counts incoming commands and callbacks.",
		},
		[]string{"command"},
	)

	telegramRateLimitTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_rate_limit_triggered_total",
			Help: "Total number of times users have been rate-limited.",
		},
	)

	telegramSendErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_send_errors_total",
			Help: "Outbound Telegram send failures by classified kind.",
		},
		[]string{"kind"},
	)
)

func IncUsersRegistered() {
	usersRegisteredTotal.Inc()
}

func IncTelegramCommand(command string) {
	telegramCommandsReceivedTotal.WithLabelValues(norm(command)).Inc()
}

func IncRateLimitTriggered() {
	telegramRateLimitTriggeredTotal.Inc()
}

func IncTelegramSendError(kind string) {
	telegramSendErrorsTotal.WithLabelValues(norm(kind)).Inc()
}
