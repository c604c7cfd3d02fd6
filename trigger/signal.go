package trigger

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/GoCodeAlone/modlife"
)

// Signal stops on the first of the given signals, SIGINT and SIGTERM by default.
func Signal(signals ...os.Signal) Trigger {
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	return func(stopper Stopper, logger modlife.Logger) (func(), error) {
		ch := make(chan os.Signal, 1)
		done := make(chan struct{})
		signal.Notify(ch, signals...)
		go func() {
			select {
			case sig := <-ch:
				requestStop(stopper, logger, "signal", "signal", sig.String())
			case <-done:
			}
		}()
		return func() {
			signal.Stop(ch)
			select {
			case <-done:
			default:
				close(done)
			}
		}, nil
	}
}
