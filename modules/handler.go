package modules

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	handlerservice "v2ray.com/core/app/proxyman/command"
	"v2ray.com/core/common/protocol"
	"v2ray.com/core/common/serial"
)

// HandlerServiceClient wraps the core's handler API for per-user hot updates
type HandlerServiceClient struct {
	handlerservice.HandlerServiceClient
}

func NewHandlerServiceClient(client *grpc.ClientConn) *HandlerServiceClient {
	return &HandlerServiceClient{
		HandlerServiceClient: handlerservice.NewHandlerServiceClient(client),
	}
}

// AddUser attaches a user account to the inbound identified by tag.
func (h *HandlerServiceClient) AddUser(tag string, user *protocol.User) error {
	_, err := h.AlterInbound(context.Background(), &handlerservice.AlterInboundRequest{
		Tag:       tag,
		Operation: serial.ToTypedMessage(&handlerservice.AddUserOperation{User: user}),
	})
	if err != nil {
		if s, ok := status.FromError(err); ok && strings.Contains(s.Message(), "already exists") {
			return nil
		}
		return err
	}
	return nil
}

// RemoveUser detaches the account with the given email from the inbound.
// A user that is not present on the inbound is not an error.
func (h *HandlerServiceClient) RemoveUser(tag string, email string) error {
	_, err := h.AlterInbound(context.Background(), &handlerservice.AlterInboundRequest{
		Tag:       tag,
		Operation: serial.ToTypedMessage(&handlerservice.RemoveUserOperation{Email: email}),
	})
	if err != nil {
		if s, ok := status.FromError(err); ok && strings.Contains(s.Message(), "not found") {
			return nil
		}
		return err
	}
	return nil
}
