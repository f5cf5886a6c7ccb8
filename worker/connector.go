package worker

import (
	"context"
	"sync"
	"time"

	"github.com/coolray-dev/rayfleet/models"
	"github.com/coolray-dev/rayfleet/utils"
	"github.com/sirupsen/logrus"
)

// Connector probes every registered node on a fixed interval and drives the
// registry's connection state machine from the results.
type Connector struct {
	Registry  *NodeRegistry
	Interval  uint64 // interval in second
	Timeout   time.Duration
	Ticker    *time.Ticker
	WaitGroup *sync.WaitGroup
	quit      chan struct{}
}

func NewConnector(registry *NodeRegistry, interval uint64) *Connector {
	return &Connector{
		Registry: registry,
		Interval: interval,
		Timeout:  10 * time.Second,
		quit:     make(chan struct{}),
	}
}

// Start start a instance
func (c *Connector) Start() {
	c.WaitGroup.Add(1)
	c.Ticker = time.NewTicker(time.Second * time.Duration(c.Interval))
	go func() {
		for {
			select {
			case <-c.Ticker.C:
				c.checkNodes()
			case <-c.quit:
				return
			}
		}
	}()
	utils.Log.Info("Connector Started")
}

// Stop stop a instance
func (c *Connector) Stop() {
	c.Ticker.Stop()
	close(c.quit)
	c.WaitGroup.Done()
}

func (c *Connector) checkNodes() {
	for _, handle := range c.Registry.List() {
		switch handle.Status {
		case models.NodeDisconnected, models.NodeError:
			c.connect(handle)
		case models.NodeConnected:
			c.probe(handle)
		}
	}
}

func (c *Connector) connect(handle NodeHandle) {
	if err := c.Registry.SetStatus(handle.Node.ID, models.NodeConnecting); err != nil {
		// Raced with a concurrent transition; next tick retries.
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	if err := handle.Client.Ping(ctx); err != nil {
		utils.Log.WithFields(logrus.Fields{
			"node":  handle.Node.ID,
			"error": err,
		}).Debug("Node Unreachable")
		c.Registry.SetStatus(handle.Node.ID, models.NodeError)
		return
	}
	if err := c.Registry.SetStatus(handle.Node.ID, models.NodeConnected); err != nil {
		return
	}
	utils.Log.WithField("node", handle.Node.ID).Info("Node Connected")
}

func (c *Connector) probe(handle NodeHandle) {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()
	if err := handle.Client.Ping(ctx); err != nil {
		utils.Log.WithFields(logrus.Fields{
			"node":  handle.Node.ID,
			"error": err,
		}).Warn("Node Connection Lost")
		c.Registry.SetStatus(handle.Node.ID, models.NodeError)
	}
}
