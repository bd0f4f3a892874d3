package main

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() {
		viper.Set("log.level", "info")
		viper.Set("log.output", "stdout")
		viper.Set("log.pretty", false)
		require.NoError(t, setupLogging())
	})

	viper.Set("log.level", "DEBUG")
	viper.Set("log.output", filepath.Join(t.TempDir(), "ledgerd.log"))
	viper.Set("log.pretty", true)
	require.NoError(t, setupLogging())
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	log.Debug().Msg("written to file")

	viper.Set("log.level", "warning")
	viper.Set("log.output", "stderr")
	require.NoError(t, setupLogging())
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	viper.Set("log.level", "verbose")
	assert.Error(t, setupLogging())
}
