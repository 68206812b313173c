// Package vtxconfig defines the TX/RX configuration structs from spec.md
// §6 and loads them the way firestige-Otus's internal/otus/config/loader.go
// loads pipeline config: github.com/spf13/viper over a file plus
// environment overrides, with a defaults pass and (for JSON documents) a
// github.com/xeipuuv/gojsonschema validation gate before unmarshaling.
package vtxconfig

import "vtxgo/pkg/vtxerr"

// Defaults from spec.md §6.
const (
	DefaultMTU                  = 1400
	DefaultSendBufBytes         = 2 * 1024 * 1024
	DefaultRecvBufBytes         = 2 * 1024 * 1024
	DefaultRetransTimeoutMS     = 5
	DefaultMaxRetrans           = 3
	DefaultDataRetransTimeoutMS = 30
	DefaultDataMaxRetrans       = 3
	DefaultConnectTimeoutMS     = 100
	DefaultConnectMaxRetrans    = 3
	DefaultHeartbeatIntervalMS  = 60_000
	DefaultHeartbeatMaxMiss     = 3
	DefaultFrameTimeoutMS       = 100

	minMTU = 17 // must exceed the 16-byte header
)

// TXConfig configures a Transmitter.
type TXConfig struct {
	BindAddr string `mapstructure:"bind_addr"`
	BindPort uint16 `mapstructure:"bind_port"`

	MTU          uint16 `mapstructure:"mtu"`
	SendBufBytes uint32 `mapstructure:"send_buf_bytes"`

	RetransTimeoutMS int `mapstructure:"retrans_timeout_ms"`
	MaxRetrans       int `mapstructure:"max_retrans"`

	DataRetransTimeoutMS int `mapstructure:"data_retrans_timeout_ms"`
	DataMaxRetrans       int `mapstructure:"data_max_retrans"`

	ConnectTimeoutMS  int `mapstructure:"connect_timeout_ms"`
	ConnectMaxRetrans int `mapstructure:"connect_max_retrans"`

	HeartbeatIntervalMS int `mapstructure:"heartbeat_interval_ms"`
	HeartbeatMaxMiss    int `mapstructure:"heartbeat_max_miss"`
}

// RXConfig configures a Receiver.
type RXConfig struct {
	ServerAddr string `mapstructure:"server_addr"`
	ServerPort uint16 `mapstructure:"server_port"`

	MTU          uint16 `mapstructure:"mtu"`
	RecvBufBytes uint32 `mapstructure:"recv_buf_bytes"`

	FrameTimeoutMS int `mapstructure:"frame_timeout_ms"`

	DataRetransTimeoutMS int `mapstructure:"data_retrans_timeout_ms"`
	DataMaxRetrans       int `mapstructure:"data_max_retrans"`

	HeartbeatIntervalMS int `mapstructure:"heartbeat_interval_ms"`
	HeartbeatMaxMiss    int `mapstructure:"heartbeat_max_miss"`
}

// ApplyDefaultsTX fills zero fields of cfg with spec.md §6 defaults, the
// way Otus's loader.applyDefaults fills an empty LoggerConfig.
func ApplyDefaultsTX(cfg *TXConfig) {
	if cfg.MTU == 0 {
		cfg.MTU = DefaultMTU
	}
	if cfg.SendBufBytes == 0 {
		cfg.SendBufBytes = DefaultSendBufBytes
	}
	if cfg.RetransTimeoutMS == 0 {
		cfg.RetransTimeoutMS = DefaultRetransTimeoutMS
	}
	if cfg.MaxRetrans == 0 {
		cfg.MaxRetrans = DefaultMaxRetrans
	}
	if cfg.DataRetransTimeoutMS == 0 {
		cfg.DataRetransTimeoutMS = DefaultDataRetransTimeoutMS
	}
	if cfg.DataMaxRetrans == 0 {
		cfg.DataMaxRetrans = DefaultDataMaxRetrans
	}
	if cfg.ConnectTimeoutMS == 0 {
		cfg.ConnectTimeoutMS = DefaultConnectTimeoutMS
	}
	if cfg.ConnectMaxRetrans == 0 {
		cfg.ConnectMaxRetrans = DefaultConnectMaxRetrans
	}
	if cfg.HeartbeatIntervalMS == 0 {
		cfg.HeartbeatIntervalMS = DefaultHeartbeatIntervalMS
	}
	if cfg.HeartbeatMaxMiss == 0 {
		cfg.HeartbeatMaxMiss = DefaultHeartbeatMaxMiss
	}
}

// ApplyDefaultsRX fills zero fields of cfg with spec.md §6 defaults.
func ApplyDefaultsRX(cfg *RXConfig) {
	if cfg.MTU == 0 {
		cfg.MTU = DefaultMTU
	}
	if cfg.RecvBufBytes == 0 {
		cfg.RecvBufBytes = DefaultRecvBufBytes
	}
	if cfg.FrameTimeoutMS == 0 {
		cfg.FrameTimeoutMS = DefaultFrameTimeoutMS
	}
	if cfg.DataRetransTimeoutMS == 0 {
		cfg.DataRetransTimeoutMS = DefaultDataRetransTimeoutMS
	}
	if cfg.DataMaxRetrans == 0 {
		cfg.DataMaxRetrans = DefaultDataMaxRetrans
	}
	if cfg.HeartbeatIntervalMS == 0 {
		cfg.HeartbeatIntervalMS = DefaultHeartbeatIntervalMS
	}
	if cfg.HeartbeatMaxMiss == 0 {
		cfg.HeartbeatMaxMiss = DefaultHeartbeatMaxMiss
	}
}

// ValidateTX rejects configurations spec.md §6/§8 call out as invalid at
// configuration time (MTU too small to carry a header, non-positive
// timeouts/counts).
func ValidateTX(cfg TXConfig) error {
	if cfg.MTU < minMTU {
		return vtxerr.New(vtxerr.InvalidParam, "vtxconfig.ValidateTX")
	}
	if cfg.RetransTimeoutMS <= 0 || cfg.MaxRetrans <= 0 {
		return vtxerr.New(vtxerr.InvalidParam, "vtxconfig.ValidateTX")
	}
	if cfg.DataRetransTimeoutMS <= 0 || cfg.DataMaxRetrans <= 0 {
		return vtxerr.New(vtxerr.InvalidParam, "vtxconfig.ValidateTX")
	}
	if cfg.ConnectTimeoutMS <= 0 || cfg.ConnectMaxRetrans <= 0 {
		return vtxerr.New(vtxerr.InvalidParam, "vtxconfig.ValidateTX")
	}
	if cfg.HeartbeatIntervalMS <= 0 || cfg.HeartbeatMaxMiss <= 0 {
		return vtxerr.New(vtxerr.InvalidParam, "vtxconfig.ValidateTX")
	}
	return nil
}

// ValidateRX mirrors ValidateTX for the receiver's option set.
func ValidateRX(cfg RXConfig) error {
	if cfg.MTU < minMTU {
		return vtxerr.New(vtxerr.InvalidParam, "vtxconfig.ValidateRX")
	}
	if cfg.FrameTimeoutMS <= 0 {
		return vtxerr.New(vtxerr.InvalidParam, "vtxconfig.ValidateRX")
	}
	if cfg.DataRetransTimeoutMS <= 0 || cfg.DataMaxRetrans <= 0 {
		return vtxerr.New(vtxerr.InvalidParam, "vtxconfig.ValidateRX")
	}
	if cfg.HeartbeatIntervalMS <= 0 || cfg.HeartbeatMaxMiss <= 0 {
		return vtxerr.New(vtxerr.InvalidParam, "vtxconfig.ValidateRX")
	}
	return nil
}
