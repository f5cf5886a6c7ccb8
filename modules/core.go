package modules

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os/exec"
	"sync"
	"time"

	"github.com/coolray-dev/rayfleet/models"
	"github.com/coolray-dev/rayfleet/utils"
	"google.golang.org/grpc"
	"v2ray.com/core/common/protocol"
)

// Core supervises the local proxy-core process. It is the source of truth
// for the fleet's configuration, so callers treat a failed restart as fatal
// to the operation that triggered it.
type Core struct {
	BinaryPath  string
	ConfigPath  string
	GRPCAddr    string
	DialTimeout time.Duration

	mu      sync.Mutex
	cmd     *exec.Cmd
	conn    *grpc.ClientConn
	handler *HandlerServiceClient
	current *models.StartupConfig
}

// NewCore returns an unstarted supervisor for the core binary.
func NewCore(binary, configPath, grpcAddr string) *Core {
	return &Core{
		BinaryPath:  binary,
		ConfigPath:  configPath,
		GRPCAddr:    grpcAddr,
		DialTimeout: 10 * time.Second,
	}
}

// Restart writes cfg to disk, replaces the running process and reconnects
// the handler API. The lock only guards the process handle against
// concurrent hot updates; serializing whole restarts is the fleet
// controller's job.
func (c *Core) Restart(cfg *models.StartupConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("marshal startup config: %w", err)
	}
	if err := ioutil.WriteFile(c.ConfigPath, data, 0600); err != nil {
		return fmt.Errorf("write startup config: %w", err)
	}

	c.stopLocked()

	cmd := exec.Command(c.BinaryPath, "-config", c.ConfigPath)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start core process: %w", err)
	}
	c.cmd = cmd

	conn, err := ConnectGRPC(c.GRPCAddr, c.DialTimeout)
	if err != nil {
		c.stopLocked()
		return fmt.Errorf("connect core api: %w", err)
	}
	c.conn = conn
	c.handler = NewHandlerServiceClient(conn)
	c.current = cfg

	utils.Log.WithField("inbounds", len(cfg.Inbounds)).Info("Local Core Restarted")
	return nil
}

// Stop terminates the core process and closes the API connection.
func (c *Core) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Core) stopLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.handler = nil
	}
	if c.cmd != nil && c.cmd.Process != nil {
		c.cmd.Process.Kill()
		c.cmd.Wait()
	}
	c.cmd = nil
}

// UpdateUser hot-applies a single user's assignment: the account is removed
// from every running inbound, then re-added to the tags the user now holds.
// Returns utils.ErrUnsupportedProtocol before touching any inbound when an
// assigned protocol has no live-update conversion; callers degrade to a
// full restart in that case.
func (c *Core) UpdateUser(user *models.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handler == nil {
		return errors.New("core api not connected")
	}

	accounts := make(map[models.ProxyType]*protocol.User, len(user.Inbounds))
	for proto := range user.Inbounds {
		account, err := utils.ConvertUser(user, proto)
		if err != nil {
			return err
		}
		accounts[proto] = account
	}

	if c.current != nil {
		for _, inbound := range c.current.Inbounds {
			if err := c.handler.RemoveUser(inbound.Tag, user.Username); err != nil {
				return fmt.Errorf("remove user from %s: %w", inbound.Tag, err)
			}
		}
	}
	for proto, tags := range user.Inbounds {
		for _, tag := range tags {
			if err := c.handler.AddUser(tag, accounts[proto]); err != nil {
				return fmt.Errorf("add user to %s: %w", tag, err)
			}
		}
	}
	return nil
}
