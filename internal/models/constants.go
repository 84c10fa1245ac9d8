package models

const (
	// Queue record statuses. A record that committed remotely is deleted,
	// not marked; "dead" records are excluded from automatic retry until
	// an explicit reset.
	StatusPending = "pending"
	StatusFailed  = "failed"
	StatusDead    = "dead"
)

const (
	PaymentStatusPending = "pending"
	PaymentStatusSuccess = "success"
	PaymentStatusFailed  = "failed"

	PaymentMethodOffline = "offline"
)

const (
	// DefaultMaxRetries число автоматических повторов до исключения записи
	DefaultMaxRetries = 3

	// DefaultSyncIntervalSeconds период фонового запуска синхронизации
	DefaultSyncIntervalSeconds = 60

	// DefaultSyncCooldownSeconds минимальный интервал между запусками
	DefaultSyncCooldownSeconds = 30

	// DefaultItemDelayMillis пауза между попытками внутри одного прогона
	DefaultItemDelayMillis = 1000

	// DefaultProbeTimeoutSeconds таймаут проверки доступности сети
	DefaultProbeTimeoutSeconds = 5

	// DefaultProbeCacheSeconds время жизни кэша результата проверки сети
	DefaultProbeCacheSeconds = 5
)
