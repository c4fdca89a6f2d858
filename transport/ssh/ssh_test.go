package ssh

import (
	"testing"

	"github.com/GitDataAI/git-inner/transaction"
	"github.com/stretchr/testify/require"
)

func TestParseCommandUploadPack(t *testing.T) {
	service, namespace, repo, err := parseCommand([]string{"git-upload-pack", "'acme/widgets.git'"})
	require.NoError(t, err)
	require.Equal(t, transaction.ServiceUploadPack, service)
	require.Equal(t, "acme", namespace)
	require.Equal(t, "widgets", repo)
}

func TestParseCommandReceivePack(t *testing.T) {
	service, namespace, repo, err := parseCommand([]string{"git-receive-pack", "'acme/widgets'"})
	require.NoError(t, err)
	require.Equal(t, transaction.ServiceReceivePack, service)
	require.Equal(t, "acme", namespace)
	require.Equal(t, "widgets", repo)
}

func TestParseCommandRejectsUnsupportedService(t *testing.T) {
	_, _, _, err := parseCommand([]string{"git-archive", "'acme/widgets'"})
	require.Error(t, err)
}

func TestParseCommandRejectsMalformedArgs(t *testing.T) {
	_, _, _, err := parseCommand([]string{"git-upload-pack"})
	require.Error(t, err)
}

func TestParseCommandRejectsMalformedPath(t *testing.T) {
	_, _, _, err := parseCommand([]string{"git-upload-pack", "'widgets'"})
	require.Error(t, err)
}
