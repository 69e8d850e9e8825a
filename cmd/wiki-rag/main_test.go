package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func contextWithLogLevel(t *testing.T, level string) *cli.Context {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("log-level", "info", "")
	require.NoError(t, set.Set("log-level", level))
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestSetupLoggerValidLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "INFO", "Debug"} {
		assert.NoError(t, setupLogger(contextWithLogLevel(t, level)), "level %q", level)
	}
}

func TestSetupLoggerInvalidLevel(t *testing.T) {
	err := setupLogger(contextWithLogLevel(t, "verbose"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verbose")
}

func TestIndexCommandRequiresArgs(t *testing.T) {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	ctx := cli.NewContext(cli.NewApp(), set, nil)

	err := indexCommand(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page ID")
}

func TestSearchCommandRequiresQuery(t *testing.T) {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	ctx := cli.NewContext(cli.NewApp(), set, nil)

	err := searchCommand(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query")
}
