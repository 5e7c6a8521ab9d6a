package conf

import (
	"github.com/juju/errors"
	"gopkg.in/ini.v1"
)

// DefaultTuplesPerTileGroup is the default tile group capacity.
const DefaultTuplesPerTileGroup = 1000

// Cfg carries the storage-layer configuration. Raw keeps the parsed ini file
// around so callers can read keys this struct does not surface.
type Cfg struct {
	Raw *ini.File

	DataDir  string
	LogPath  string
	LogLevel string

	TuplesPerTileGroup int
	SnapshotCodec      string
	MetricsEnabled     bool
}

// NewCfg returns a configuration with defaults applied.
func NewCfg() *Cfg {
	return &Cfg{
		DataDir:            "data",
		LogLevel:           "info",
		TuplesPerTileGroup: DefaultTuplesPerTileGroup,
		SnapshotCodec:      "snappy",
		MetricsEnabled:     true,
	}
}

// Load reads an ini file and overlays it on the defaults. Recognized keys
// live in the [tilestore] section:
//
//	data_dir              = data
//	log_path              =
//	log_level             = info
//	tuples_per_tile_group = 1000
//	snapshot_codec        = snappy | lz4 | none
//	metrics_enabled       = true
func Load(path string) (*Cfg, error) {
	cfg := NewCfg()
	raw, err := ini.Load(path)
	if err != nil {
		return nil, errors.Annotatef(err, "loading config %s", path)
	}
	cfg.Raw = raw

	sec := raw.Section("tilestore")
	if k := sec.Key("data_dir"); k.String() != "" {
		cfg.DataDir = k.String()
	}
	if k := sec.Key("log_path"); k.String() != "" {
		cfg.LogPath = k.String()
	}
	if k := sec.Key("log_level"); k.String() != "" {
		cfg.LogLevel = k.String()
	}
	if k := sec.Key("tuples_per_tile_group"); k.String() != "" {
		n, err := k.Int()
		if err != nil || n <= 0 {
			return nil, errors.Errorf("invalid tuples_per_tile_group %q", k.String())
		}
		cfg.TuplesPerTileGroup = n
	}
	if k := sec.Key("snapshot_codec"); k.String() != "" {
		cfg.SnapshotCodec = k.String()
	}
	if k := sec.Key("metrics_enabled"); k.String() != "" {
		b, err := k.Bool()
		if err != nil {
			return nil, errors.Errorf("invalid metrics_enabled %q", k.String())
		}
		cfg.MetricsEnabled = b
	}
	return cfg, nil
}
