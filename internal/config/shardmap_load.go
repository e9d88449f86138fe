package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/bohrm1/agora/internal/shardmap"
)

type rawServerShard struct {
	ServerID    uint16 `mapstructure:"server_id"`
	AntennaLo   uint32 `mapstructure:"antenna_lo"`
	AntennaHi   uint32 `mapstructure:"antenna_hi"`
	SCLo        uint32 `mapstructure:"sc_lo"`
	SCHi        uint32 `mapstructure:"sc_hi"`
	UELo        uint32 `mapstructure:"ue_lo"`
	UEHi        uint32 `mapstructure:"ue_hi"`
}

// LoadShardMap reads the [[shard_map]] table array of the same config
// file consumed by Load, converting it into a shardmap.Map. It is kept
// separate from Load because the shard map's validation (shardmap.Validate)
// needs the resolved A/C/U totals first.
func LoadShardMap(path string) (shardmap.Map, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return shardmap.Map{}, fmt.Errorf("config: reading shard map from %s: %w", path, err)
		}
	}

	var raw []rawServerShard
	if err := v.UnmarshalKey("shard_map", &raw); err != nil {
		return shardmap.Map{}, fmt.Errorf("config: unmarshal shard_map: %w", err)
	}

	m := shardmap.Map{Servers: make([]shardmap.ServerShard, 0, len(raw))}
	for _, r := range raw {
		m.Servers = append(m.Servers, shardmap.ServerShard{
			ServerID:    r.ServerID,
			Antennas:    shardmap.Range{Lo: r.AntennaLo, Hi: r.AntennaHi},
			Subcarriers: shardmap.Range{Lo: r.SCLo, Hi: r.SCHi},
			UEs:         shardmap.Range{Lo: r.UELo, Hi: r.UEHi},
		})
	}
	return m, nil
}
