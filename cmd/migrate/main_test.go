package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRootCmd_RegistersExpectedFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{
		"entity", "storage-location", "checkpoint-db", "file-version-strategy",
		"table-strategy", "dry-run", "continue-on-error", "concurrency",
		"batch-size", "rate-limit", "rate-limit-burst", "export", "log-level", "log-path",
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "expected flag %q to be registered", name)
	}
}

func TestNewEntityServiceClient_ReturnsErrorWhenUnwired(t *testing.T) {
	client, err := newEntityServiceClient()
	assert.Nil(t, client)
	assert.Error(t, err)
}
