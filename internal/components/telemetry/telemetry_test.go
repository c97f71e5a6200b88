package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestScopedAPI(t *testing.T) {
	rec := NewRecorderAPI()
	scoped := NewScopedAPI("portal", NewScopedAPI("client", rec))

	scoped.ReportBroken("client.grades", errors.New("boom"))
	scoped.ReportWarning("client.login")
	scoped.ReportCount("users", 3)
	scoped.ReportDebug("fetch", "zest_start.pl")

	broken := rec.Reports(KindBroken)
	require.Len(t, broken, 1)
	require.Equal(t, "client: portal: client.grades", broken[0].ID)
	require.Len(t, broken[0].Params, 1)

	counts := rec.Reports(KindCount)
	require.Len(t, counts, 1)
	require.Equal(t, int64(3), counts[0].Count)

	require.Len(t, rec.Reports(""), 4)
}

func TestOtelAPIForwards(t *testing.T) {
	rec := NewRecorderAPI()
	tel, err := NewOtelAPI(rec, noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	tel.ReportBroken("changes.any-changes", errors.New("boom"))
	tel.ReportWarning("push.send-to-user")
	tel.ReportCount("changes.users", 12)

	require.Len(t, rec.Reports(KindBroken), 1)
	require.Len(t, rec.Reports(KindWarning), 1)
	require.Equal(t, int64(12), rec.Reports(KindCount)[0].Count)
}
