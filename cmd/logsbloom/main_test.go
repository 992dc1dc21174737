package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/kwertop/logsbloom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	paddedAddress = "0x000000000000000000000000cd2a3d9f938e13cd947ec05abc7fe734df8dd826"
	address       = "cd2a3d9f938e13cd947ec05abc7fe734df8dd826"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"logsbloom"}, args...))
	return strings.TrimSpace(out.String()), err
}

func TestNew(t *testing.T) {
	out, err := run(t, "new")
	require.NoError(t, err)
	assert.Equal(t, logsbloom.New().Hex(), out)
}

func TestAddCheck(t *testing.T) {
	bloom, err := run(t, "add", paddedAddress)
	require.NoError(t, err)

	out, err := run(t, "check", "--bloom", bloom, address)
	require.NoError(t, err)
	assert.Equal(t, "true", out)

	out, err = run(t, "check", "--bloom", bloom, address, "0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, "false", out)

	out, err = run(t, "check", "--bloom", bloom)
	require.NoError(t, err)
	assert.Equal(t, "true", out)
}

func TestCheckLegacy(t *testing.T) {
	// the empty element sets locations 1490, 1537 and 1783, the legacy mask
	// looks at 466, 1 and 247 instead
	bloom, err := run(t, "add", "0x00")
	require.NoError(t, err)

	out, err := run(t, "check", "--bloom", bloom, "0x")
	require.NoError(t, err)
	assert.Equal(t, "true", out)

	out, err = run(t, "check", "--bloom", bloom, "--legacy", "0x")
	require.NoError(t, err)
	assert.Equal(t, "false", out)
}

func TestInvalidInput(t *testing.T) {
	_, err := run(t, "add", "0xabc")
	require.ErrorIs(t, err, logsbloom.ErrInvalidTopic)

	_, err = run(t, "check", "--bloom", "0x00ff", address)
	var lengthErr *logsbloom.InvalidLengthError
	require.ErrorAs(t, err, &lengthErr)
	assert.Equal(t, 2, lengthErr.Length)

	_, err = run(t, "add", "--redis-key", "foo", address)
	require.ErrorIs(t, err, errNoRedisURI)
}

func TestUnion(t *testing.T) {
	a, err := run(t, "add", "0x01")
	require.NoError(t, err)
	b, err := run(t, "add", "0x02")
	require.NoError(t, err)

	merged, err := run(t, "union", "--bloom", a, "--with", b)
	require.NoError(t, err)

	out, err := run(t, "check", "--bloom", merged, "0x01", "0x02")
	require.NoError(t, err)
	assert.Equal(t, "true", out)
}

func TestInfo(t *testing.T) {
	bloom, err := run(t, "add", "0x")
	require.NoError(t, err)
	out, err := run(t, "info", "--bloom", bloom)
	require.NoError(t, err)
	assert.Contains(t, out, "bits: 3")
	assert.Contains(t, out, "locations: 1490 1537 1783")
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	uri := "redis://" + mr.Addr()

	out, err := run(t, "--redis-uri", uri, "new", "--redis-key", "block")
	require.NoError(t, err)
	assert.Equal(t, "block", out)

	_, err = run(t, "--redis-uri", uri, "add", "--redis-key", "block", paddedAddress)
	require.NoError(t, err)

	out, err = run(t, "--redis-uri", uri, "check", "--redis-key", "block", address)
	require.NoError(t, err)
	assert.Equal(t, "true", out)

	_, err = run(t, "--redis-uri", uri, "new", "--redis-key", "empty")
	require.NoError(t, err)
	_, err = run(t, "--redis-uri", uri, "add", "--redis-key", "empty", "0x00")
	require.NoError(t, err)
	out, err = run(t, "--redis-uri", uri, "check", "--redis-key", "empty", "0x")
	require.NoError(t, err)
	assert.Equal(t, "true", out)
	out, err = run(t, "--redis-uri", uri, "check", "--redis-key", "empty", "--legacy", "0x")
	require.NoError(t, err)
	assert.Equal(t, "false", out)

	_, err = run(t, "--redis-uri", uri, "new", "--redis-key", "other")
	require.NoError(t, err)
	_, err = run(t, "--redis-uri", uri, "add", "--redis-key", "other", "0x01")
	require.NoError(t, err)

	inMemory, err := run(t, "add", "0x02")
	require.NoError(t, err)
	merged, err := run(t, "--redis-uri", uri, "union", "--redis-key", "block", "--with-key", "other", "--with", inMemory)
	require.NoError(t, err)

	filter, err := logsbloom.FromHex(merged)
	require.NoError(t, err)
	ok, err := filter.MultiCheckHex([]string{address, "0x01", "0x02"})
	require.NoError(t, err)
	assert.True(t, ok)

	out, err = run(t, "--redis-uri", uri, "union", "--with-key", "other")
	require.NoError(t, err)
	fromKey, err := logsbloom.FromHex(out)
	require.NoError(t, err)
	assert.True(t, fromKey.Check([]byte{0x01}))

	_, err = run(t, "--redis-uri", uri, "info", "--redis-key", "missing")
	require.ErrorIs(t, err, logsbloom.ErrFilterNotFound)
}
