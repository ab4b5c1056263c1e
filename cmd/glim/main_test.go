package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"glim-hq/cards/pkg/card"
)

// execute runs the root command with args after resetting every flag to
// its default.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	cfgFile = filepath.Join(t.TempDir(), "missing.yaml")
	versionOutput = "text"
	serveFlags.listenAddress = ""
	serveFlags.port = 0
	serveFlags.token = ""
	serveFlags.logLevel = ""
	serveFlags.dryRun = false
	cardFlags.output = "-"
	cardFlags.theme = card.DefaultTheme
	cardFlags.scale = card.DefaultScale
	cardFlags.concurrency = 4

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}
