package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/bimakw/token-forwarder/internal/config"
	"github.com/bimakw/token-forwarder/internal/domain/entities"
	ethinfra "github.com/bimakw/token-forwarder/internal/infrastructure/ethereum"
)

// NewChainBootstrapper returns a Bootstrapper that parses the key, dials the network
// and wires the metadata resolver and transactor to that connection. The key is
// parsed first so a malformed key fails before any network traffic.
func NewChainBootstrapper(privateKey string, ethCfg config.EthereumConfig, fwdCfg config.ForwarderConfig, logger *zap.Logger) Bootstrapper {
	return func(ctx context.Context, network entities.NetworkConfig) (*Session, error) {
		signer, err := ethinfra.NewSigner(privateKey)
		if err != nil {
			return nil, err
		}

		netLogger := logger.With(zap.String("network", network.Name))

		client, err := ethinfra.NewClient(ctx, network, ethCfg, netLogger)
		if err != nil {
			return nil, err
		}

		transactor := ethinfra.NewTransactor(client, signer, ethinfra.TransactorConfig{
			ChainID:             client.ChainID(),
			GasLimitBufferPct:   ethCfg.GasLimitBuffer,
			ConfirmTimeout:      fwdCfg.ConfirmTimeout,
			ReceiptPollInterval: fwdCfg.ReceiptPollInterval,
		}, netLogger)

		return &Session{
			Account:  signer.Address(),
			Chain:    client,
			Resolver: ethinfra.NewMetadataFetcher(client, netLogger),
			Tokens:   transactor,
			Close:    client.Close,
		}, nil
	}
}
