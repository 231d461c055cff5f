package grpc

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/recipekeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

// fakeDB fails PingContext while down is set.
type fakeDB struct {
	down  atomic.Bool
	pings atomic.Int32
}

func (f *fakeDB) PingContext(context.Context) error {
	f.pings.Add(1)
	if f.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

// startBufconn runs srv on an in-memory listener and returns a health client.
func startBufconn(t *testing.T, srv *GRPCServer) (healthpb.HealthClient, context.CancelFunc, <-chan error) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- srv.serve(ctx, lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		_ = conn.Close()
	})

	return healthpb.NewHealthClient(conn), cancel, done
}

func TestHealth_ServingWhenDatabaseUp(t *testing.T) {
	db := &fakeDB{}
	client, _, _ := startBufconn(t, NewGRPCServer("", logging.Nop(), db, time.Hour))

	for _, name := range []string{"", ServiceName} {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: name})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus(), name)
	}
	assert.GreaterOrEqual(t, db.pings.Load(), int32(1))
}

func TestHealth_FlipsWithDatabase(t *testing.T) {
	db := &fakeDB{}
	db.down.Store(true)
	client, _, _ := startBufconn(t, NewGRPCServer("", logging.Nop(), db, 20*time.Millisecond))

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		if err != nil {
			return healthpb.HealthCheckResponse_UNKNOWN
		}
		return resp.GetStatus()
	}

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check())

	db.down.Store(false)
	assert.Eventually(t, func() bool {
		return check() == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	db.down.Store(true)
	assert.Eventually(t, func() bool {
		return check() == healthpb.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	client, cancel, done := startBufconn(t, NewGRPCServer("", logging.Nop(), &fakeDB{}, time.Hour))

	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop(), &fakeDB{}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.Error(t, srv.Run(ctx))
}

func TestNewGRPCServer_DefaultInterval(t *testing.T) {
	srv := NewGRPCServer(":0", logging.Nop(), &fakeDB{}, 0)
	assert.Equal(t, 10*time.Second, srv.interval)
}
