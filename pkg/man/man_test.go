package man

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManCmd(t *testing.T) {
	cmd := NewManCmd()
	assert.Equal(t, "man", cmd.Use)
	assert.True(t, cmd.Hidden)
}

func TestManCmd_Output(t *testing.T) {
	root := &cobra.Command{Use: "venue2spotify", Short: "Add venue artists to a Spotify playlist"}
	root.AddCommand(&cobra.Command{Use: "sync", Short: "Sync a venue to a playlist", Run: func(*cobra.Command, []string) {}})
	root.AddCommand(NewManCmd())

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"man"})
	require.NoError(t, root.Execute())

	out := buf.String()
	assert.Contains(t, out, ".TH")
	assert.Contains(t, out, "VENUE2SPOTIFY")
	assert.Contains(t, out, "sync")
}
