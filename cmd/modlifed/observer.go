package main

import (
	"context"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/GoCodeAlone/modlife"
)

// phaseLogger logs phase transitions and the final verdict as they arrive
// from the engine's event stream.
func phaseLogger(logger modlife.Logger) func(context.Context, cloudevents.Event) error {
	return func(_ context.Context, event cloudevents.Event) error {
		switch event.Type() {
		case modlife.EventTypePhaseChanged:
			var data modlife.PhaseChangedData
			if err := event.DataAs(&data); err != nil {
				return err
			}
			logger.Debug("Phase event", "id", event.ID(), "from", data.From, "to", data.To)
		case modlife.EventTypeEngineStopped:
			var data modlife.StoppedData
			if err := event.DataAs(&data); err != nil {
				return err
			}
			logger.Info("Engine stopped", "id", event.ID(), "success", data.Success)
		}
		return nil
	}
}
