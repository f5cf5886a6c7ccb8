package modules

import (
	"errors"
	"time"

	"google.golang.org/grpc"
)

// ConnectGRPC keeps dialing the core API endpoint until it answers or the
// timeout elapses. The core needs a moment to open its API listener after a
// restart, hence the retry loop instead of a single dial.
func ConnectGRPC(address string, timeoutDuration time.Duration) (conn *grpc.ClientConn, err error) {
	timeout := time.After(timeoutDuration)
	tick := time.Tick(500 * time.Millisecond)

	for {
		select {
		case <-timeout:
			if err == nil {
				err = errors.New("grpc dial timed out")
			}
			return
		case <-tick:
			conn, err = grpc.Dial(address, grpc.WithInsecure())
			if err == nil {
				return
			}
		}
	}
}
