package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSearchCmd_RequiresQuery(t *testing.T) {
	rootCmd := NewRootCmd()
	rootCmd.SetArgs([]string{"search"})

	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)

	err := rootCmd.Execute()

	require.Error(t, err)
}

func TestAskCmd_RequiresQuestion(t *testing.T) {
	rootCmd := NewRootCmd()
	rootCmd.SetArgs([]string{"ask"})

	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)

	err := rootCmd.Execute()

	require.Error(t, err)
}
