package filelock

import "time"

// retryDelay is the poll interval used when blocking on a contended lock.
// flock's context variants poll rather than sleeping in the kernel so that
// cancellation stays prompt.
const retryDelay = 25 * time.Millisecond
