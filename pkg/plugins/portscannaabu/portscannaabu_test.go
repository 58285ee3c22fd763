package portscannaabu

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipcrawler/pkg/config"
)

func TestParseNaabuOutput_DedupesAndMapsServiceNames(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "naabu.txt")
	content := `{"host":"example.com","port":80}
{"host":"example.com","port":80}
{"host":"example.com","port":443}
{"host":"other.com","port":22}
not json at all
`
	require.NoError(t, os.WriteFile(out, []byte(content), 0o644))

	services, err := parseNaabuOutput(out, "example.com")
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, "http", services[0].Name)
	assert.Equal(t, "https", services[1].Name)
	assert.True(t, services[1].Secure)
	assert.False(t, services[0].Secure)
}

func TestParseNaabuOutput_MissingFileReturnsEmpty(t *testing.T) {
	services, err := parseNaabuOutput(filepath.Join(t.TempDir(), "nope.txt"), "example.com")
	require.NoError(t, err)
	assert.Empty(t, services)
}

func TestPortArgs_TopStrategyClampsToDiscreteValues(t *testing.T) {
	top := 1000
	cfg := config.NaabuConfig{PortStrategy: config.StrategyTop, Ports: config.PortSelection{TopPorts: &top}}
	assert.Equal(t, []string{"-top-ports", "1000"}, portArgs(cfg))

	small := 50
	cfg.Ports.TopPorts = &small
	assert.Equal(t, []string{"-top-ports", "100"}, portArgs(cfg))
}

func TestPortArgs_RangeStrategy(t *testing.T) {
	start, end := 1, 1024
	cfg := config.NaabuConfig{PortStrategy: config.StrategyRange, Ports: config.PortSelection{RangeStart: &start, RangeEnd: &end}}
	assert.Equal(t, []string{"-p", "1-1024"}, portArgs(cfg))
}

func TestPortArgs_ListStrategy(t *testing.T) {
	cfg := config.NaabuConfig{PortStrategy: config.StrategyList, Ports: config.PortSelection{SpecificPorts: []int{22, 80, 443}}}
	assert.Equal(t, []string{"-p", "22,80,443"}, portArgs(cfg))
}
