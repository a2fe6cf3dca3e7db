package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/linksigner/internal/clock"
)

var fixedNow = time.Unix(1700000000, 0).UTC()

func execute(t *testing.T, clk clock.Clock, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(clk)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestMACKnownVector(t *testing.T) {
	t.Setenv("LINKSIGNER_SECRET", "test123")

	out, err := execute(t, clock.NewFrozen(fixedNow), "mac", "url", "expires=1700000000", "test=abc")
	require.NoError(t, err)
	assert.Equal(t, "zVTv-cq_A7t3a-BQoRktIL09nb3LPd60iOLkL8Vkol4", out)

	out, err = execute(t, clock.NewFrozen(fixedNow), "mac", "/controller/action/")
	require.NoError(t, err)
	assert.Equal(t, "uT-j-fp-LsMG6ZfTgt3gaz7P9O2d7dR6DXro2n6VJ20", out)
}

func TestSignThenVerify(t *testing.T) {
	t.Setenv("LINKSIGNER_SECRET", "test123")
	clk := clock.NewFrozen(fixedNow)

	link, err := execute(t, clk, "sign", "/download", "file=42", "--ttl", "1m", "--base", "https://files.example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "https://files.example.com/download?file=42&expires=1700000060&params="), link)

	out, err := execute(t, clk, "verify", link)
	require.NoError(t, err)
	assert.Equal(t, "valid", out)

	_, err = execute(t, clk, "verify", link, "--route", "/other")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_hmac")

	clk.Adjust(time.Minute)
	_, err = execute(t, clk, "verify", link)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired_link")
}

func TestSignExpiresAtAndNoAdditions(t *testing.T) {
	t.Setenv("LINKSIGNER_SECRET", "test123")
	clk := clock.NewFrozen(fixedNow)

	link, err := execute(t, clk, "sign", "/r", "a=1", "--expires-at", "1700000100", "--no-additions")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "/r?a=1&expires=1700000100&hmac="), link)

	_, err = execute(t, clk, "verify", link+"&b=2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_hmac")
}

func TestSignRejectsBadInput(t *testing.T) {
	t.Setenv("LINKSIGNER_SECRET", "test123")
	clk := clock.NewFrozen(fixedNow)

	tests := map[string][]string{
		"relative route":  {"sign", "download"},
		"missing equals":  {"sign", "/r", "novalue"},
		"duplicate key":   {"sign", "/r", "a=1", "a=2"},
		"reserved key":    {"sign", "/r", "hmac=x"},
		"both expiries":   {"sign", "/r", "--ttl", "1m", "--expires-at", "5"},
		"negative ttl":    {"sign", "/r", "--ttl", "-1m"},
		"no route at all": {"sign"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := execute(t, clk, args...)
			assert.Error(t, err)
		})
	}
}

func TestCommandsNeedSecret(t *testing.T) {
	t.Setenv("LINKSIGNER_SECRET", "")

	_, err := execute(t, clock.NewFrozen(fixedNow), "mac", "/r")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LINKSIGNER_SECRET")
}
