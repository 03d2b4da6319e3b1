package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/StabilityNexus/hammerhouse/core"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	assert.Nil(t, err)
	check.Equal(t, ":8545", cfg.ListenAddr)
	check.Equal(t, 4, cfg.Shards)
	check.Equal(t, uint32(100), cfg.FeeBps)
	check.Equal(t, core.DigestKeccak256, cfg.DigestKind())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hammerd.yaml")
	body := "listen_addr: \":9000\"\nshards: 8\nfee_bps: 250\ndigest: sha256\ntreasury: vault\n"
	assert.Nil(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	assert.Nil(t, err)
	check.Equal(t, ":9000", cfg.ListenAddr)
	check.Equal(t, 8, cfg.Shards)
	check.Equal(t, uint32(250), cfg.FeeBps)
	check.Equal(t, core.DigestSHA256, cfg.DigestKind())
	check.Equal(t, "vault", cfg.Treasury)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	check.Nil(t, cfg.Validate())

	bad := Default()
	bad.Shards = 0
	check.NotNil(t, bad.Validate())

	bad = Default()
	bad.FeeBps = 10_001
	check.NotNil(t, bad.Validate())

	bad = Default()
	bad.Digest = "crc32"
	check.NotNil(t, bad.Validate())

	bad = Default()
	bad.Treasury = ""
	check.NotNil(t, bad.Validate())
}
