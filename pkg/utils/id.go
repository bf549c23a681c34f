package utils

import (
	"fmt"
	"sync/atomic"
	"time"
)

var idSeq uint64

// GenID generates a unique message ID from the current UTC nanosecond
// timestamp and an atomic sequence number. The timestamp prefix keeps IDs
// roughly creation-ordered, which the store's key layout relies on.
func GenID() string {
	n := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("msg-%d-%d", n, s)
}
