package main

import (
	"bytes"
	"testing"

	"github.com/armchr/junitmig/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"loud":    zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestWriteRules(t *testing.T) {
	infos := []model.CleanupInfo{
		{ID: "junit.test", Description: "Replace @Test", Default: true, Patterns: []string{"@org.junit.Test -> @Test"}},
		{ID: "junit.assert.swap", Description: "Swap operands"},
	}

	var table bytes.Buffer
	require.NoError(t, writeRules(&table, infos, "table"))
	assert.Contains(t, table.String(), "* junit.test")
	assert.Contains(t, table.String(), "  junit.assert.swap")
	assert.Contains(t, table.String(), "@org.junit.Test -> @Test")

	var out bytes.Buffer
	require.NoError(t, writeRules(&out, infos, "yaml"))
	var decoded []model.CleanupInfo
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, infos, decoded)

	assert.Error(t, writeRules(&out, infos, "xml"))
}
