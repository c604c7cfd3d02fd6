package trigger

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/GoCodeAlone/modlife"
)

// Schedule stops at the next time matching the standard five field cron
// spec (or a descriptor such as "@daily"), e.g. for nightly restarts.
func Schedule(spec string) Trigger {
	return func(stopper Stopper, logger modlife.Logger) (func(), error) {
		c := cron.New()
		id, err := c.AddFunc(spec, func() {
			requestStop(stopper, logger, "schedule", "spec", spec)
		})
		if err != nil {
			return nil, fmt.Errorf("stop schedule %q: %w", spec, err)
		}
		c.Start()
		logger.Debug("Stop schedule armed", "spec", spec, "next", c.Entry(id).Next)
		return func() { <-c.Stop().Done() }, nil
	}
}
