package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTlsModeIsSecure(t *testing.T) {
	assert.False(t, TlsModeNo.IsSecure())
	assert.True(t, TlsModeBehindProxy.IsSecure())
	assert.True(t, TlsModeAuto.IsSecure())
}

func TestUserWithRedactedPassword(t *testing.T) {
	u := User{Login: "bob", Password: "s3cr3t"}
	redacted := u.WithRedactedPassword()
	assert.Equal(t, Redacted, redacted.Password)
	assert.Equal(t, "s3cr3t", u.Password, "original value must be unchanged")
}

func TestSessionDurationDaysDefault(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, int64(1), cfg.SessionDurationDays())

	cfg.SessionDurationDaysRaw = 7
	assert.Equal(t, int64(7), cfg.SessionDurationDays())
}

func TestPortHint(t *testing.T) {
	secure := &Config{TlsMode: TlsModeAuto}
	assert.Nil(t, secure.PortHint())

	insecure := &Config{TlsMode: TlsModeNo}
	if assert.NotNil(t, insecure.PortHint()) {
		assert.Equal(t, DefaultPort, *insecure.PortHint())
	}
}

func TestDomainsMatchesRoutingTableKeys(t *testing.T) {
	cfg := &Config{
		Hostname: "atrium.io",
		Domain:   "atrium.io",
		TlsMode:  TlsModeAuto,
		Apps: []App{
			{ID: 1, Host: "files", IsProxy: true, Target: "http://127.0.0.1:9000", Subdomains: []string{"preview"}},
			{ID: 2, Host: "notes", IsProxy: false, Target: "/srv/notes"},
		},
	}

	table, err := BuildRoutingTable(cfg)
	assert.NoError(t, err)

	domains := cfg.Domains()
	assert.Contains(t, domains, cfg.Hostname)

	keys := make(map[string]bool, len(table))
	for k := range table {
		keys[k] = true
	}
	for _, d := range domains {
		if d == cfg.Hostname {
			continue
		}
		assert.True(t, keys[d], "expected %s in routing table", d)
	}
	assert.Equal(t, len(domains)-1, len(table))
}

func TestBelongsToInstanceSingleTenant(t *testing.T) {
	apps := []App{
		{ID: 1, Host: "files.sub.atrium.io"},
		{ID: 2, Host: "files"},
	}
	filtered := filteredApps(apps, "atrium.io", "atrium.io")
	assert.Len(t, filtered, 1)
	assert.Equal(t, "files", filtered[0].Host)
}

func TestBelongsToInstanceMultiTenant(t *testing.T) {
	apps := []App{
		{ID: 1, Host: "files.tenant-a.atrium.io"},
		{ID: 2, Host: "files.tenant-b.atrium.io"},
	}
	filtered := filteredApps(apps, "tenant-a.atrium.io", "atrium.io")
	assert.Len(t, filtered, 1)
	assert.Equal(t, "files.tenant-a.atrium.io", filtered[0].Host)
}
