package config

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func validConfig() *Config {
	return &Config{
		Forwarder: ForwarderConfig{
			PrivateKey:       testKey,
			RecipientAddress: "0x3333333333333333333333333333333333333333",
			ScanMode:         ScanModePoll,
			DedupBackend:     DedupBackendMemory,
		},
		RPC: RPCConfig{Ethereum: "https://eth.example.org"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing key", mutate: func(c *Config) { c.Forwarder.PrivateKey = "  " }, wantErr: ErrMissingPrivateKey},
		{name: "missing recipient", mutate: func(c *Config) { c.Forwarder.RecipientAddress = "" }, wantErr: ErrMissingRecipient},
		{name: "invalid recipient", mutate: func(c *Config) { c.Forwarder.RecipientAddress = "0x1234" }, wantErr: ErrInvalidRecipient},
		{name: "no networks", mutate: func(c *Config) { c.RPC = RPCConfig{Base: " "} }, wantErr: ErrNoNetworks},
		{name: "bad scan mode", mutate: func(c *Config) { c.Forwarder.ScanMode = "stream" }, wantErr: ErrInvalidScanMode},
		{name: "subscribe mode", mutate: func(c *Config) { c.Forwarder.ScanMode = ScanModeSubscribe }},
		{name: "bad dedup backend", mutate: func(c *Config) { c.Forwarder.DedupBackend = "etcd" }, wantErr: ErrInvalidDedup},
		{name: "redis dedup", mutate: func(c *Config) { c.Forwarder.DedupBackend = DedupBackendRedis }},
		{name: "negative chain id", mutate: func(c *Config) { c.RPC.BaseChainID = -1 }, wantErr: ErrInvalidChainID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ErrorOmitsPrivateKey(t *testing.T) {
	cfg := validConfig()
	cfg.Forwarder.ScanMode = "bogus"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), testKey[2:]) {
		t.Error("error message leaked the private key")
	}
}

func TestNetworks_StableOrder(t *testing.T) {
	cfg := &Config{RPC: RPCConfig{
		Polygon:  "https://polygon.example.org",
		Ethereum: " https://eth.example.org ",
		Base:     "https://base.example.org",
	}}

	networks := cfg.Networks()

	var names []string
	for _, n := range networks {
		names = append(names, n.Name)
	}
	if !reflect.DeepEqual(names, []string{"Ethereum", "Base", "Polygon"}) {
		t.Errorf("unexpected order %v", names)
	}
	if networks[0].RPCURL != "https://eth.example.org" {
		t.Errorf("expected trimmed url, got %q", networks[0].RPCURL)
	}
}

func TestNetworks_CarryChainIDs(t *testing.T) {
	cfg := &Config{RPC: RPCConfig{
		Ethereum:        "https://eth.example.org",
		EthereumChainID: 1,
		Base:            "https://base.example.org",
	}}

	networks := cfg.Networks()
	if len(networks) != 2 {
		t.Fatalf("expected 2 networks, got %d", len(networks))
	}
	if networks[0].ChainID != 1 {
		t.Errorf("expected Ethereum chain id 1, got %d", networks[0].ChainID)
	}
	if networks[1].ChainID != 0 {
		t.Errorf("expected Base to accept any chain, got %d", networks[1].ChainID)
	}
}

func TestSweepTokenAddresses(t *testing.T) {
	cfg := ForwarderConfig{SweepTokens: []string{
		"0xDAC17F958D2ee523a2206206994597C13D831ec7",
		" 0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48 ",
		"",
		"0xdac17f958d2ee523a2206206994597c13d831ec7",
		"not-an-address",
		"a0b86991c6218b36c1d19d4a2e9eb0ce3606eb48aa",
	}}

	valid, rejected := cfg.SweepTokenAddresses()

	expectedValid := []string{
		"0xdac17f958d2ee523a2206206994597c13d831ec7",
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
	}
	if !reflect.DeepEqual(valid, expectedValid) {
		t.Errorf("expected %v, got %v", expectedValid, valid)
	}
	if len(rejected) != 2 {
		t.Errorf("expected 2 rejected entries, got %v", rejected)
	}
}

func TestDSNAndAddr(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "n", SSLMode: "require"}
	if got := db.DSN(); got != "host=db port=5433 user=u password=p dbname=n sslmode=require" {
		t.Errorf("unexpected DSN %q", got)
	}

	r := RedisConfig{Host: "cache", Port: 6380}
	if got := r.Addr(); got != "cache:6380" {
		t.Errorf("unexpected addr %q", got)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("PRIVATE_KEY", testKey)
	t.Setenv("RECIPIENT_ADDRESS", "0x3333333333333333333333333333333333333333")
	t.Setenv("RPC_URL", "")
	t.Setenv("ARBITRUM_RPC_URL", "")
	t.Setenv("POLYGON_RPC_URL", "")
	t.Setenv("BASE_RPC_URL", "https://base.example.org")
	t.Setenv("CUSTOM_TOKENS", "0xdac17f958d2ee523a2206206994597c13d831ec7,0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	t.Setenv("FORWARDER_FORWARD_DELAY", "5s")
	t.Setenv("BASE_CHAIN_ID", "8453")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	if cfg.Forwarder.ForwardDelay != 5*time.Second {
		t.Errorf("expected 5s delay, got %s", cfg.Forwarder.ForwardDelay)
	}
	if cfg.Forwarder.PollInterval != 15*time.Second {
		t.Errorf("expected default 15s poll interval, got %s", cfg.Forwarder.PollInterval)
	}
	if cfg.Forwarder.ScanMode != ScanModePoll || cfg.Forwarder.DedupBackend != DedupBackendMemory {
		t.Errorf("unexpected defaults %q / %q", cfg.Forwarder.ScanMode, cfg.Forwarder.DedupBackend)
	}
	if len(cfg.Forwarder.SweepTokens) != 2 {
		t.Errorf("expected 2 sweep tokens, got %v", cfg.Forwarder.SweepTokens)
	}
	if networks := cfg.Networks(); len(networks) != 1 || networks[0].Name != "Base" || networks[0].ChainID != 8453 {
		t.Errorf("expected only Base on chain 8453, got %+v", networks)
	}
	if cfg.Database.Enabled || cfg.Redis.Enabled || cfg.Notify.Enabled() {
		t.Error("optional backends should be disabled by default")
	}
}
