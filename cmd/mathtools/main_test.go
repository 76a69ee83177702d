package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), out.String())
	return out.String()
}

func TestWalkthroughFlagsOnEveryCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "root", args: []string{"--trace", "--reseed"}, want: "== Integration"},
		{name: "all", args: []string{"all", "--trace", "--reseed"}, want: "== Integration"},
		{name: "flags before subcommand", args: []string{"--trace", "optimize"}, want: "== Optimization"},
		{name: "approx", args: []string{"approx", "--reseed", "--trace"}, want: "== Approximation"},
		{name: "integrate", args: []string{"integrate", "--reseed", "--seed", "7"}, want: "monte carlo (seed 7)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, execute(t, tt.args...), tt.want)
		})
	}
}

func TestTraceFlagPrintsCoarseGrid(t *testing.T) {
	traced := execute(t, "--trace", "optimize")
	plain := execute(t, "optimize")

	assert.Contains(t, traced, "-10.0000 -10.0000")
	assert.NotContains(t, plain, "-10.0000 -10.0000")
	assert.Greater(t, strings.Count(traced, "\n"), strings.Count(plain, "\n"))
}
