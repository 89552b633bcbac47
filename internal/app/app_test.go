package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/stadium-bookings/internal/adapters/memory"
	"github.com/robertarktes/stadium-bookings/internal/config"
	"github.com/robertarktes/stadium-bookings/internal/observability"
)

func TestBuild_MemoryOnly(t *testing.T) {
	cfg := &config.Config{StoreBackend: config.StoreMemory, StorageTimeout: time.Second, TimeZone: "UTC"}

	deps, err := Build(context.Background(), cfg, observability.NewDiscardLogger())
	require.NoError(t, err)
	defer deps.Close()

	assert.IsType(t, &memory.Store{}, deps.Store)
	assert.NotNil(t, deps.Service)
	assert.Nil(t, deps.Repo)
	assert.Nil(t, deps.Redis)
	assert.Nil(t, deps.Catalog)
	assert.Empty(t, deps.ReadyChecks)
}

func TestBuild_ClosesInReverseOrder(t *testing.T) {
	var order []int
	d := &Deps{}
	d.onClose(func() { order = append(order, 1) })
	d.onClose(func() { order = append(order, 2) })
	d.Close()
	assert.Equal(t, []int{2, 1}, order)
}
