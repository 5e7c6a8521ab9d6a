package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndObserve(t *testing.T) {
	m := NewTableMetrics("tilestore_test")
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	m.ObserveOperation("accounts", "insert", "ok")
	m.ObserveOperation("accounts", "insert", "index_conflict")
	m.ObserveConflict("accounts", "index")
	m.SetTupleCount("accounts", 42)

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]int)
	for _, mf := range families {
		byName[mf.GetName()] = len(mf.GetMetric())
	}
	assert.Equal(t, 2, byName["tilestore_test_table_operations_total"])
	assert.Equal(t, 1, byName["tilestore_test_table_conflicts_total"])
	assert.Equal(t, 1, byName["tilestore_test_table_tuples"])
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *TableMetrics
	m.ObserveOperation("t", "insert", "ok")
	m.ObserveConflict("t", "delete")
	m.SetTupleCount("t", 1)
}

func TestDoubleRegisterFails(t *testing.T) {
	m := NewTableMetrics("tilestore_test")
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))
	require.Error(t, m.Register(reg))
}
