package port

import "time"

type Sink interface {
	// Live line: overwrite last line (no newline)
	WriteLive(line string) error
	// Snapshot block: append a timestamped historical table
	WriteSnapshot(ts time.Time, table string) error
	// Normal newline (for logs)
	NewLine() error
}
