package repository

import "database/sql"

// DefaultQueuePageSize matches the settings schema default.
const DefaultQueuePageSize = 10

type Repo struct {
	db *sql.DB
}

type Settings struct {
	GuildID        string
	IdleTimeoutSec int // 0 inherits the process-wide timeout
	QueuePageSize  int
}
