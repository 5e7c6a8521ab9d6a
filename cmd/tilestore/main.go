package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/tilestore/tilestore/catalog"
	"github.com/tilestore/tilestore/conf"
	"github.com/tilestore/tilestore/index"
	"github.com/tilestore/tilestore/logger"
	"github.com/tilestore/tilestore/metrics"
	"github.com/tilestore/tilestore/storage"
	"github.com/tilestore/tilestore/txn"
	"github.com/tilestore/tilestore/types"
)

var configPath = flag.String("config", "", "path to an ini configuration file")

func main() {
	flag.Parse()

	cfg := conf.NewCfg()
	if *configPath != "" {
		loaded, err := conf.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if err := logger.Init(logger.Config{LogPath: cfg.LogPath, LogLevel: cfg.LogLevel}); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logger.Errorf("%v", errors.ErrorStack(err))
		os.Exit(1)
	}
}

func run(cfg *conf.Cfg) error {
	locator := storage.NewManager()
	tm := txn.NewManager(locator)

	schema := catalog.NewSchema([]catalog.Column{
		{Name: "id", Type: types.IntVal, NotNull: true},
		{Name: "name", Type: types.VarcharVal},
		{Name: "balance", Type: types.DecimalVal},
	})
	table := storage.NewDataTable(locator, locator.NextOID(), "accounts",
		schema, uint32(cfg.TuplesPerTileGroup))

	if cfg.MetricsEnabled {
		m := metrics.NewTableMetrics("tilestore")
		if err := m.Register(prometheus.DefaultRegisterer); err != nil {
			return errors.Annotate(err, "registering metrics")
		}
		table.SetMetrics(m)
	}

	table.AddIndex(index.NewHashIndex(&index.Metadata{
		OID:        locator.NextOID(),
		Name:       "accounts_pkey",
		Type:       index.TypePrimaryKey,
		KeyColumns: []int{0},
	}))
	table.AddIndex(index.NewOrderedIndex(&index.Metadata{
		OID:        locator.NextOID(),
		Name:       "accounts_name_idx",
		Type:       index.TypeDefault,
		KeyColumns: []int{1},
	}))

	tx := tm.Begin()
	for i := int64(0); i < 5; i++ {
		tuple, err := storage.NewTuple(schema, []types.Value{
			types.NewIntValue(i),
			types.NewVarcharValue(fmt.Sprintf("account-%d", i)),
			types.NewDecimalValue(decimal.NewFromInt(i * 100)),
		})
		if err != nil {
			return errors.Trace(err)
		}
		loc, err := table.InsertTuple(tx, tuple)
		if err != nil {
			return errors.Trace(err)
		}
		tx.RecordInsert(loc)
	}
	if err := tm.Commit(tx); err != nil {
		return errors.Trace(err)
	}

	// A second transaction updates one balance and reads the table back.
	tx2 := tm.Begin()
	updated, err := storage.NewTuple(schema, []types.Value{
		types.NewIntValue(3),
		types.NewVarcharValue("account-3"),
		types.NewDecimalValue(decimal.NewFromInt(999)),
	})
	if err != nil {
		return errors.Trace(err)
	}
	loc, err := table.UpdateTuple(tx2, updated)
	if err != nil {
		return errors.Trace(err)
	}
	tx2.RecordInsert(loc)
	if err := tm.Commit(tx2); err != nil {
		return errors.Trace(err)
	}

	reader := tm.Begin()
	it := table.Iterator(reader)
	for it.Next() {
		logger.Infof("row %s at %s", it.Tuple(), it.Location())
	}
	if err := tm.Abort(reader); err != nil {
		return errors.Trace(err)
	}

	fmt.Print(table.String())
	fmt.Printf("approximate tuple count: %.0f\n", table.NumberOfTuples())

	codec, err := storage.ParseSnapshotCodec(cfg.SnapshotCodec)
	if err != nil {
		return errors.Trace(err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return errors.Trace(err)
	}
	path := filepath.Join(cfg.DataDir, "accounts.snapshot")
	f, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer f.Close()
	if err := table.WriteSnapshot(f, codec); err != nil {
		return errors.Trace(err)
	}
	logger.Infof("snapshot written to %s", path)
	return nil
}
