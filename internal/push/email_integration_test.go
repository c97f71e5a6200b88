package push

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"edziennik-backend/internal/components/telemetry"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestEmailTransportSmtp(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	testcontainers.Logger = log.New(io.Discard, "", 0)
	smtpServer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "haravich/fake-smtp-server",
			ExposedPorts: []string{"1025/tcp"},
			WaitingFor:   wait.ForLog("smtp://0.0.0.0:1025"),
		},
	})
	if err != nil {
		t.Skipf("smtp container unavailable: %s", err)
	}
	t.Cleanup(func() {
		require.NoError(t, smtpServer.Terminate(context.Background()))
	})

	host, err := smtpServer.Host(ctx)
	require.NoError(t, err)
	if host != "localhost" && host != "127.0.0.1" {
		t.Skipf("plain auth needs a local smtp server, got %s", host)
	}
	port, err := smtpServer.MappedPort(ctx, "1025/tcp")
	require.NoError(t, err)

	transport := NewEmailTransport(EmailOptions{
		Server:   host,
		Port:     port.Int(),
		Address:  "powiadomienia@example.com",
		Password: "default",
	}, telemetry.NewRecorderAPI())

	reports, err := transport.Send(ctx, []Destination{{
		SubscriptionID: 1,
		Subscription:   `{"email":"jan@example.com"}`,
		Payload:        Payload{Notification: Notification{Title: "Fizyka - nowa ocena", Body: "5 - Kartkówka"}},
	}})
	require.NoError(t, err)
	require.True(t, reports[0].Success, "%v", reports[0].Err)
}
