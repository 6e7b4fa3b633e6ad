package sqlite

import (
	"strings"
	"time"
)

// retryOnBusy retries a write a few times when SQLite reports the database
// as busy or locked. WAL mode makes this rare, but the results server and a
// batch CLI can share one database file.
func retryOnBusy(fn func() error) error {
	const attempts = 5
	delay := 10 * time.Millisecond

	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !isBusyErr(err) {
			return err
		}
		time.Sleep(delay)
		delay *= 2
	}
	return err
}

func isBusyErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
