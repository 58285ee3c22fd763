package httpxprobe

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ipcrawler/pkg/types"
)

func TestMatches(t *testing.T) {
	p := New()
	assert.True(t, p.Matches(types.Service{Name: "http-dev", Port: 3000}))
	assert.True(t, p.Matches(types.Service{Name: "unknown", Port: 9000}))
	assert.True(t, p.Matches(types.Service{Name: "unknown", Port: 443}))
	assert.False(t, p.Matches(types.Service{Name: "ssh", Port: 22}))
}

func TestContainsHTTP(t *testing.T) {
	assert.True(t, containsHTTP("https"))
	assert.True(t, containsHTTP("http-proxy"))
	assert.False(t, containsHTTP("ssh"))
}
