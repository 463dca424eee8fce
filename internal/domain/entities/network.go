package entities

// NetworkConfig identifies one chain the forwarder watches
type NetworkConfig struct {
	Name    string
	RPCURL  string
	ChainID int64 // 0 accepts whatever the node reports
}

