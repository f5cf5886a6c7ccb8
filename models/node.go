package models

// NodeStatus is the connection state of a remote node.
type NodeStatus string

const (
	NodeDisconnected NodeStatus = "disconnected"
	NodeConnecting   NodeStatus = "connecting"
	NodeConnected    NodeStatus = "connected"
	NodeError        NodeStatus = "error"
)

// Node is a struct of node info
type Node struct {
	ID          uint64 `json:"id" mapstructure:"id" validate:"required"`
	Name        string `json:"name" mapstructure:"name" validate:"required"`
	Description string `json:"description" mapstructure:"description"`
	Host        string `json:"host" mapstructure:"host" validate:"required"` // The Host to access the node agent
	APIPort     uint   `json:"api_port" mapstructure:"api_port" validate:"required,min=1,max=65535"`
	AccessKey   string `json:"access_key" mapstructure:"access_key"`
}
