package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAndActivate(t *testing.T) {
	path := writeProfiles(t, `
aws:
  url: https://aws.example.org/galaxy
  key: secret
  kube: /tmp/kube/aws
gcp:
  url: https://gcp.example.org/galaxy
  key: 12345
  ssh:
    host: 10.0.0.1
    port: 2222
    user: ubuntu
    key_file: /tmp/id
`)
	profiles, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"aws", "gcp"}, profiles.Names())

	ctx, err := profiles.Activate("aws")
	require.NoError(t, err)
	assert.Equal(t, &Context{Cloud: "aws", ServerURL: "https://aws.example.org/galaxy", APIKey: "secret", Kubeconfig: "/tmp/kube/aws"}, ctx)

	ctx, err = profiles.Activate("gcp")
	require.NoError(t, err)
	assert.Equal(t, "12345", ctx.APIKey)
	assert.Empty(t, ctx.Kubeconfig)
	require.NotNil(t, ctx.SSH)
	assert.Equal(t, 2222, ctx.SSH.Port)
	assert.Equal(t, "ubuntu", ctx.SSH.User)
}

func TestActivateMissing(t *testing.T) {
	_, err := Profiles{}.Activate("azure")
	assert.ErrorIs(t, err, ErrNoProfile)
}

func TestActivateRequiresURL(t *testing.T) {
	_, err := Profiles{"aws": {Key: "k"}}.Activate("aws")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoProfile)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeProfiles(t, "aws:\n  url: x\n  kubeconfig: y\n"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".kube", "config"), ExpandHome("~/.kube/config"))
	assert.Equal(t, "/etc/kube", ExpandHome("/etc/kube"))
	assert.Equal(t, "~user/x", ExpandHome("~user/x"))
}
