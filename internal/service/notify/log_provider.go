package notify

import (
	"context"

	"firewatch/internal/logger"
)

// LogProvider only logs calls. It is used when no telephony is configured.
type LogProvider struct {
	logger *logger.Logger
}

func NewLogProvider(logger *logger.Logger) *LogProvider {
	return &LogProvider{logger: logger}
}

func (p *LogProvider) PlaceCall(_ context.Context, call Call) error {
	p.logger.Warning("Emergency call (telephony disabled)",
		"to", call.Destination, "camera", call.Label, "lat", call.Lat, "lon", call.Lon)
	return nil
}
