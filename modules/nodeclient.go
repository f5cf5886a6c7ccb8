package modules

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/coolray-dev/rayfleet/models"
)

// Network Const
const (
	MaxIdleConns        int = 10
	MaxIdleConnsPerHost int = 10
	IdleConnTimeout     int = 90
)

// NodeClient talks to the agent running next to a remote proxy core. The
// agent exposes a small REST surface; pushes and restarts are independent
// per node, so each node gets its own client.
type NodeClient struct {
	baseURL    string
	accessKey  string
	httpClient *http.Client
}

// NewNodeClient returns a client for the given node's agent endpoint.
func NewNodeClient(node models.Node) *NodeClient {
	return &NodeClient{
		baseURL:    fmt.Sprintf("http://%s:%d", node.Host, node.APIPort),
		accessKey:  node.AccessKey,
		httpClient: createHTTPClient(),
	}
}

// Ping probes the agent. Used by the connector loop to drive the node's
// connection state.
func (c *NodeClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/ping", nil)
}

// PushConfig uploads a full startup configuration to the node. The node
// does not apply it until Restart is called.
func (c *NodeClient) PushConfig(ctx context.Context, cfg *models.StartupConfig) error {
	return c.do(ctx, http.MethodPost, "/config", cfg)
}

// PushUser sends an incremental single-user update to the node.
func (c *NodeClient) PushUser(ctx context.Context, user *models.User) error {
	return c.do(ctx, http.MethodPut, "/users/"+user.Username, user)
}

// Restart asks the node to restart its proxy core with the last pushed
// configuration.
func (c *NodeClient) Restart(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/restart", nil)
}

func (c *NodeClient) do(ctx context.Context, method, path string, payload interface{}) error {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+"node."+c.accessKey)

	response, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Error Calling Node API: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("Error Calling Node API: Code %d", response.StatusCode)
	}
	return nil
}

// createHTTPClient for connection re-use
func createHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        MaxIdleConns,
			MaxIdleConnsPerHost: MaxIdleConnsPerHost,
			IdleConnTimeout:     time.Duration(IdleConnTimeout) * time.Second,
		},
		Timeout: 30 * time.Second,
	}
}
