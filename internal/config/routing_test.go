package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReverseAppBindingForwardedHeadersHeuristic(t *testing.T) {
	withPort, err := NewReverseAppBinding(App{Name: "api", Host: "api", Target: "http://api.internal:9001"}, "atrium.io", nil)
	require.NoError(t, err)
	assert.True(t, withPort.ForwardHasExplicitPort())

	withoutPort, err := NewReverseAppBinding(App{Name: "api", Host: "api", Target: "http://api.internal"}, "atrium.io", nil)
	require.NoError(t, err)
	assert.False(t, withoutPort.ForwardHasExplicitPort())
}

func TestReverseAppBindingPublicAuthority(t *testing.T) {
	port := DefaultPort
	binding, err := NewReverseAppBinding(App{Name: "files", Host: "files", Target: "http://127.0.0.1:9000"}, "atrium.io", &port)
	require.NoError(t, err)

	assert.Equal(t, "http", binding.AppScheme)
	assert.Equal(t, "files.atrium.io:8080", binding.AppAuthority)
	assert.Equal(t, "http", binding.ForwardScheme)
	assert.Equal(t, "127.0.0.1:9000", binding.ForwardAuthority)
}

func TestReverseAppBindingSecureScheme(t *testing.T) {
	binding, err := NewReverseAppBinding(App{Name: "files", Host: "files", Target: "https://127.0.0.1:9000"}, "atrium.io", nil)
	require.NoError(t, err)

	assert.Equal(t, "https", binding.AppScheme)
	assert.Equal(t, "files.atrium.io", binding.AppAuthority)
	assert.Equal(t, "https", binding.ForwardScheme)
}

func TestNewReverseAppBindingRejectsUnparsableTarget(t *testing.T) {
	_, err := NewReverseAppBinding(App{Name: "broken", Host: "broken", Target: "://not-a-url"}, "atrium.io", nil)
	assert.Error(t, err)
}

func TestRoutingTableEntryCountMatchesBaseAndSubdomains(t *testing.T) {
	cfg := &Config{
		Hostname: "atrium.io",
		Domain:   "atrium.io",
		TlsMode:  TlsModeAuto,
		Apps: []App{
			{ID: 1, Host: "files", IsProxy: true, Target: "http://127.0.0.1:9000", Subdomains: []string{"a", "b"}},
			{ID: 2, Host: "notes", IsProxy: false, Target: "/srv/notes"},
		},
	}

	table, err := BuildRoutingTable(cfg)
	require.NoError(t, err)
	assert.Len(t, table, 4) // files.atrium.io, a.files.atrium.io, b.files.atrium.io, notes.atrium.io
}

func TestResolveLowercasesAndStripsPort(t *testing.T) {
	cfg := &Config{Hostname: "atrium.io", Domain: "atrium.io", TlsMode: TlsModeAuto, Apps: []App{
		{ID: 1, Host: "files", IsProxy: true, Target: "http://127.0.0.1:9000"},
	}}
	table, err := BuildRoutingTable(cfg)
	require.NoError(t, err)

	binding, ok := table.Resolve("FILES.ATRIUM.IO:8443")
	assert.True(t, ok)
	assert.NotNil(t, binding)

	_, ok = table.Resolve("unknown.atrium.io")
	assert.False(t, ok)
}
