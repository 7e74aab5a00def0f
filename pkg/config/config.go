// Package config loads the node's static settings from a TOML file into
// typed structs before any subsystem starts.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"reflect"
	"time"

	"github.com/naoina/toml"
)

// tomlSettings makes an unrecognized field a hard error rather than a
// silently ignored typo.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// ProtocolSettings governs the consensus-visible constants the VM and
// Verifier must agree with the rest of the network on.
type ProtocolSettings struct {
	NetworkMagic          uint32 `toml:"network_magic"`
	AddressVersion         byte   `toml:"address_version"`
	StandbyCommitteeSize   int    `toml:"standby_committee_size"`
	MillisecondsPerBlock   uint32 `toml:"milliseconds_per_block"`
	FeePerByteFallback     int64  `toml:"fee_per_byte_fallback"`
	ValidatorsCount        int    `toml:"validators_count"`
	MaxTransactionsPerBlock uint32 `toml:"max_transactions_per_block"`
	MaxValidUntilBlockIncrement uint32 `toml:"max_valid_until_block_increment"`
}

// P2PSettings governs the Protocol Handler's tunables.
type P2PSettings struct {
	MinPeers             int           `toml:"min_peers"`
	MaxPeers             int           `toml:"max_peers"`
	DialTimeout          time.Duration `toml:"dial_timeout"`
	ProtoTickInterval    time.Duration `toml:"proto_tick_interval"`
	PingInterval         time.Duration `toml:"ping_interval"`
	MaxBlockRetries      int           `toml:"max_block_retries"`
	MaxTxRetries         int           `toml:"max_tx_retries"`
	BlockRequestTimeout  time.Duration `toml:"block_request_timeout"`
	TxRequestTimeout     time.Duration `toml:"tx_request_timeout"`
	MaxHeadersPerReply   int           `toml:"max_headers_per_reply"`
	MaxBlocksPerInv      int           `toml:"max_blocks_per_inv"`
	MaxAddrsPerReply     int           `toml:"max_addrs_per_reply"`
}

// RPCSettings governs the RPC Query Layer's tunables.
type RPCSettings struct {
	ListenAddress       string        `toml:"listen_address"`
	SessionTTL          time.Duration `toml:"session_ttl"`
	MaxIteratorsPerSession int        `toml:"max_iterators_per_session"`
	MaxTraverseCount    int           `toml:"max_traverse_count"`
	MaxFindStorageCount int           `toml:"max_find_storage_count"`
	EnableCORS          bool          `toml:"enable_cors"`
}

// Config is the root settings document.
type Config struct {
	Protocol ProtocolSettings `toml:"protocol"`
	P2P      P2PSettings      `toml:"p2p"`
	RPC      RPCSettings      `toml:"rpc"`
}

// Default returns a Config with every field populated to the values pinned
// in a partial TOML file is always legal.
func Default() Config {
	return Config{
		Protocol: ProtocolSettings{
			NetworkMagic:                0x4e454f33, // "NEO3"-derived default
			AddressVersion:              0x35,
			StandbyCommitteeSize:        21,
			MillisecondsPerBlock:        15000,
			FeePerByteFallback:          1000,
			ValidatorsCount:             7,
			MaxTransactionsPerBlock:     512,
			MaxValidUntilBlockIncrement: 5760,
		},
		P2P: P2PSettings{
			MinPeers:            4,
			MaxPeers:            40,
			DialTimeout:         5 * time.Second,
			ProtoTickInterval:   500 * time.Millisecond,
			PingInterval:        30 * time.Second,
			MaxBlockRetries:     3,
			MaxTxRetries:        2,
			BlockRequestTimeout: 2 * time.Minute,
			TxRequestTimeout:    1 * time.Minute,
			MaxHeadersPerReply:  2000,
			MaxBlocksPerInv:     500,
			MaxAddrsPerReply:    1000,
		},
		RPC: RPCSettings{
			ListenAddress:          "127.0.0.1:10332",
			SessionTTL:             60 * time.Second,
			MaxIteratorsPerSession: 128,
			MaxTraverseCount:       1000,
			MaxFindStorageCount:    1000,
			EnableCORS:             true,
		},
	}
}

// Load reads r as TOML, applying the result on top of Default() so that
// unspecified fields keep their defaults.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	if err := tomlSettings.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile opens path and delegates to Load.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Load(bufio.NewReader(f))
}
