package recognizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// waitForReady blocks until gRPC connection enters Ready or fails.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}

// checkServing asks the standard health service whether the recognizer is
// serving. Servers without a health service count as serving once the
// connection is ready. Unavailable and NOT_SERVING are retried briefly.
func checkServing(ctx context.Context, conn *grpc.ClientConn) error {
	client := healthpb.NewHealthClient(conn)
	backoff := retry.WithMaxRetries(3, retry.NewConstant(100*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		switch status.Code(err) {
		case codes.OK:
		case codes.Unimplemented:
			return nil
		case codes.Unavailable:
			return retry.RetryableError(err)
		default:
			return err
		}
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			return retry.RetryableError(fmt.Errorf("recognizer health is %s", resp.GetStatus()))
		}
		return nil
	})
}

// CheckHealth dials endpoint and reports whether the recognizer is ready.
func CheckHealth(ctx context.Context, endpoint string, timeout time.Duration, opts ...grpc.DialOption) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return errors.New("recognizer endpoint is empty")
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return fmt.Errorf("dial recognizer %q: %w", endpoint, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn.Connect()
	if err := waitForReady(ctx, conn); err != nil {
		return fmt.Errorf("wait for recognizer readiness: %w", err)
	}
	return checkServing(ctx, conn)
}
