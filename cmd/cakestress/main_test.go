package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cake/infra/kafka"
	"cake/infra/report"
	"cake/internal/config"
)

func TestRunCommandStoresReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	t.Setenv("CAKE_STORE_DIR", dir)

	var stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"run", "--trials", "3", "--workers", "2", "--delete-odds", "20", "--log-format", "text"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, stderr.String(), "report stored")

	store, err := report.Open(dir)
	require.NoError(t, err)
	defer store.Close()

	pending, err := store.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Contains(t, string(pending[0].Payload), `"trials":3`)
}

func TestRunCommandRejectsBadFlags(t *testing.T) {
	t.Setenv("CAKE_STORE_DIR", t.TempDir())

	cmd := newRootCmd()
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--workers=-1"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestNewPublisher(t *testing.T) {
	cfg := config.Default().Kafka
	cfg.Client = config.ClientKafkaGo
	pub, err := newPublisher(cfg)
	require.NoError(t, err)
	assert.IsType(t, &kafka.Producer{}, pub)
	require.NoError(t, pub.Close())

	cfg.Client = "other"
	_, err = newPublisher(cfg)
	assert.Error(t, err)
}
