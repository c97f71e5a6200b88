package push

import (
	"context"

	"edziennik-backend/internal/components/telemetry"
)

// LogTransport prints every payload instead of delivering it.
type LogTransport struct {
	tel telemetry.API
}

func NewLogTransport(tel telemetry.API) LogTransport {
	return LogTransport{tel: telemetry.NewScopedAPI("push-log", tel)}
}

func (t LogTransport) Send(_ context.Context, batch []Destination) ([]Report, error) {
	reports := make([]Report, len(batch))
	for i, dest := range batch {
		encoded, err := dest.Payload.Encode()
		if err != nil {
			reports[i] = Report{Err: err}
			continue
		}
		t.tel.ReportDebug("notification", dest.SubscriptionID, string(encoded))
		reports[i] = Report{Success: true}
	}
	return reports, nil
}
