// Package config loads the pipeline's runtime configuration, recognizing
// every option in the baseband pipeline's configuration table, via
// spf13/viper so the same struct can be populated from a TOML file
// ("agora.toml") or from AGORA_* environment overrides.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/bohrm1/agora/internal/shardmap"
)

// Config is the fully resolved runtime configuration for one server
// process, one field per recognized option.
type Config struct {
	BSAntNum          uint32 `mapstructure:"bs_ant_num"`
	UENum             uint32 `mapstructure:"ue_num"`
	OFDMDataNum       uint32 `mapstructure:"ofdm_data_num"`
	SymbolNumPerFrame uint32 `mapstructure:"symbol_num_perframe"`
	ULPilotSyms       uint32 `mapstructure:"ul_pilot_syms"`
	FramesToTest      uint32 `mapstructure:"frames_to_test"`
	FrameWindow       uint32 `mapstructure:"frame_window"`
	DemulBlockSize    uint32 `mapstructure:"demul_block_size"`

	BSServerAddrIdx int `mapstructure:"bs_server_addr_idx"`

	NumFFTWorkers    []int `mapstructure:"num_fft_workers"`
	NumZFWorkers     []int `mapstructure:"num_zf_workers"`
	NumDemulWorkers  []int `mapstructure:"num_demul_workers"`
	NumDecodeWorkers []int `mapstructure:"num_decode_workers"`

	FFTThreadOffset    int `mapstructure:"fft_thread_offset"`
	ZFThreadOffset     int `mapstructure:"zf_thread_offset"`
	DemulThreadOffset  int `mapstructure:"demul_thread_offset"`
	DecodeThreadOffset int `mapstructure:"decode_thread_offset"`

	CoreOffset       int  `mapstructure:"core_offset"`
	UseHyperthreading bool `mapstructure:"use_hyperthreading"`
	PhyCoreNum       int  `mapstructure:"phy_core_num"`

	RXThreadNum int `mapstructure:"rx_thread_num"`
	TXThreadNum int `mapstructure:"tx_thread_num"`

	UseAFXDP bool `mapstructure:"use_af_xdp"`

	// ServerAddrs is the cluster's server list, "host:port" per index,
	// aligned with ShardMap.Servers[i].ServerID and with every
	// per-server slice above (NumFFTWorkers[i], ...). Index
	// BSServerAddrIdx is this process's own listen address.
	ServerAddrs []string `mapstructure:"server_addrs"`

	ShardMap shardmap.Map `mapstructure:"-"`
}

// SelfAddr returns this process's own listen address.
func (c Config) SelfAddr() string { return c.lookupAddr(c.BSServerAddrIdx) }

func (c Config) lookupAddr(idx int) string {
	if idx < 0 || idx >= len(c.ServerAddrs) {
		return ""
	}
	return c.ServerAddrs[idx]
}

// NumFFTWorkersHere returns this server's FFT worker count.
func (c Config) NumFFTWorkersHere() int { return c.lookup(c.NumFFTWorkers) }

// NumZFWorkersHere returns this server's ZF worker count.
func (c Config) NumZFWorkersHere() int { return c.lookup(c.NumZFWorkers) }

// NumDemulWorkersHere returns this server's Demul worker count.
func (c Config) NumDemulWorkersHere() int { return c.lookup(c.NumDemulWorkers) }

// NumDecodeWorkersHere returns this server's Decode worker count.
func (c Config) NumDecodeWorkersHere() int { return c.lookup(c.NumDecodeWorkers) }

func (c Config) lookup(perServer []int) int {
	if c.BSServerAddrIdx < 0 || c.BSServerAddrIdx >= len(perServer) {
		return 0
	}
	return perServer[c.BSServerAddrIdx]
}

// Load reads configuration from the named TOML file (if present) and from
// AGORA_-prefixed environment variables, which take precedence, matching
// the way the pack's radar reference (ogdar.toml) layers defaults under
// an explicit config file.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	setDefaults(v)

	v.SetEnvPrefix("AGORA")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("frame_window", 40)
	v.SetDefault("ul_pilot_syms", 2)
	v.SetDefault("demul_block_size", 48)
	v.SetDefault("core_offset", 0)
	v.SetDefault("use_hyperthreading", false)
	v.SetDefault("rx_thread_num", 1)
	v.SetDefault("tx_thread_num", 1)
	v.SetDefault("use_af_xdp", false)
	v.SetDefault("bs_server_addr_idx", 0)
}
