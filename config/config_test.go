package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slauger/chantal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "chantal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
repositories:
  - name: epel9
    family: rpm
    url: https://example.test/epel9
    gpg_keys: ["RPM-GPG-KEY-EPEL-9"]
  - name: bullseye
    family: deb
    url: https://example.test/debian
    suites: ["bullseye"]
    components: ["main"]
    architectures: ["amd64"]
    auth:
      type: basic
      username: mirror
      password: secret
views:
  - name: combined
    family: rpm
    conflict: first-wins
    members:
      - kind: repository
        ref: epel9
        position: 0
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Repositories, 2)
	require.True(t, cfg.Repositories[0].IsEnabled())
	require.Len(t, cfg.Views, 1)
	require.Equal(t, "first-wins", cfg.Views[0].Conflict)
}

func TestLoadRejectsUnknownFamily(t *testing.T) {
	path := writeConfig(t, `
repositories:
  - name: bad
    family: nuget
    url: https://example.test/bad
`)
	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsDuplicateRepositoryName(t *testing.T) {
	path := writeConfig(t, `
repositories:
  - name: dup
    family: rpm
    url: https://example.test/a
  - name: dup
    family: rpm
    url: https://example.test/b
`)
	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsViewWithNoMembers(t *testing.T) {
	path := writeConfig(t, `
repositories:
  - name: epel9
    family: rpm
    url: https://example.test/epel9
views:
  - name: empty
    family: rpm
    members: []
`)
	_, err := config.Load(path)
	require.Error(t, err)
}
