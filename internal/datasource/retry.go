package datasource

import "time"

// WatchRetry blocks until s settles into StateRetry or StateClosed, then
// (if it was StateRetry) sleeps retryDelay and invokes reopen. Callers
// typically run this in its own goroutine once per Source, re-arming it
// after each reopen attempt.
func (s *Source) WatchRetry(reopen func()) {
	for {
		select {
		case <-s.stopCh:
			return
		case st := <-s.stateCh:
			switch st {
			case StateRetry:
				time.Sleep(retryDelay)
				if s.State() == StateRetry {
					reopen()
				}
				return
			case StateClosed:
				return
			}
		}
	}
}
