// Package synthtest synthesizes a known app for tests in other packages.
package synthtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lex00/rds-scheduler-go/internal/app"
	"github.com/lex00/rds-scheduler-go/internal/config"
	"github.com/lex00/rds-scheduler-go/internal/synth"
)

// Config returns a valid config for instance mydb in 111111111111/us-east-1.
// set overrides individual keys before validation.
func Config(t testing.TB, set map[string]any) *config.Config {
	t.Helper()
	v := config.NewViper()
	v.Set("account", "111111111111")
	v.Set("region", "us-east-1")
	v.Set("instance_id", "mydb")
	v.Set("instance_arn", "arn:aws:rds:us-east-1:111111111111:db:mydb")
	for k, val := range set {
		v.Set(k, val)
	}
	cfg, err := config.LoadWithViper(v)
	require.NoError(t, err)
	return cfg
}

// Assembly synthesizes cfg with placeholder lookups.
func Assembly(t testing.TB, cfg *config.Config) (*synth.Result, *app.Assembly) {
	t.Helper()
	cache, err := synth.Lookups(cfg, t.TempDir(), true, nil)
	require.NoError(t, err)
	res, asm, err := synth.Run(context.Background(), cfg, cache, nil)
	require.NoError(t, err)
	return res, asm
}
