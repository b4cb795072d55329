package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "neko", cmd.Use)
	assert.Contains(t, cmd.Long, "giveaway")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"serve", "list", "view", "archive", "create", "enter", "withdraw", "extend", "cancel", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestServeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	for _, name := range []string{"db", "database-url", "addr", "archive-dir"} {
		flag := serveCmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		// Empty defaults defer to NEKO_* configuration.
		assert.Equal(t, "", flag.DefValue, name)
	}
}

func TestStoreCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"list", "view", "archive"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.NotNil(t, sub.Flags().Lookup("db"), name)
		assert.NotNil(t, sub.Flags().Lookup("database-url"), name)
	}
}

func TestClientCommandFlags(t *testing.T) {
	t.Setenv("NEKO_SERVER", "")
	cmd := NewRootCommand()
	for _, name := range []string{"create", "enter", "withdraw", "extend", "cancel"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)

		server := sub.Flags().Lookup("server")
		require.NotNil(t, server, name)
		assert.Equal(t, DefaultServer, server.DefValue)
		assert.NotNil(t, sub.Flags().Lookup("api-key"), name)
	}

	create, _, err := cmd.Find([]string{"create"})
	require.NoError(t, err)
	assert.Equal(t, "1", create.Flags().Lookup("winners").DefValue)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	assert.NotNil(t, testCmd.Flags().Lookup("filter"))
	assert.NotNil(t, testCmd.Flags().Lookup("golden-dir"))
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "list"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
