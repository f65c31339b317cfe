package cleanup

import "time"

// Stats holds statistics about one cleanup pass.
type Stats struct {
	LogsDeleted    int           // удалённые логи запусков
	RecordsDeleted int           // удалённые записи drop folder
	BytesFreed     int64         // размер удалённых логов
	Duration       time.Duration // Time taken for cleanup
}

// Config holds configuration for cleanup operations. A zero retention
// keeps the corresponding files forever.
type Config struct {
	LogsDir        string
	LogRetention   time.Duration
	RelayRetention time.Duration
	Interval       time.Duration // пауза между проходами
}

// Enabled reports whether anything is ever deleted.
func (c Config) Enabled() bool {
	return c.LogRetention > 0 || c.RelayRetention > 0
}
