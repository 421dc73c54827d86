package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleExec(t *testing.T) {
	var out bytes.Buffer
	c := newConsole(&out)
	var got []string
	c.add("say", "<words>", 1, "echo words", func(args []string) error {
		got = append(got, strings.Join(args, " "))
		return nil
	})
	c.add("fail", "", 0, "always fails", func([]string) error { return errors.New("nope") })

	require.NoError(t, c.exec("  SAY hello   there "))
	assert.Equal(t, []string{"hello there"}, got)

	require.NoError(t, c.exec("say"))
	assert.Contains(t, out.String(), "usage: say <words>")

	require.NoError(t, c.exec("dance"))
	assert.Contains(t, out.String(), `unknown command "dance"`)

	require.NoError(t, c.exec("fail"))
	assert.Contains(t, out.String(), "fail: nope")

	require.NoError(t, c.exec(""))
	assert.ErrorIs(t, c.exec("quit"), errQuit)

	out.Reset()
	require.NoError(t, c.exec("help"))
	assert.Contains(t, out.String(), "say <words>")
	assert.Contains(t, out.String(), "quit")
	assert.Less(t, strings.Index(out.String(), "fail"), strings.Index(out.String(), "say"))
}

func TestConsoleRunStopsAtEOF(t *testing.T) {
	c := newConsole(io.Discard)
	var n int
	c.add("tick", "", 0, "", func([]string) error {
		n++
		return nil
	})
	err := c.run(context.Background(), strings.NewReader("tick\ntick\n"))
	assert.ErrorIs(t, err, errQuit)
	assert.Equal(t, 2, n)
}

func TestConsoleRunStopsAtQuit(t *testing.T) {
	c := newConsole(io.Discard)
	var n int
	c.add("tick", "", 0, "", func([]string) error {
		n++
		return nil
	})
	err := c.run(context.Background(), strings.NewReader("tick\nquit\ntick\n"))
	assert.ErrorIs(t, err, errQuit)
	assert.Equal(t, 1, n)
}

func TestConsoleRunStopsWithContext(t *testing.T) {
	c := newConsole(io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pr, pw := io.Pipe()
	defer pw.Close()
	assert.NoError(t, c.run(ctx, pr))
}

func TestAtoi(t *testing.T) {
	n, err := atoi("3", "-1")
	require.NoError(t, err)
	assert.Equal(t, []int{3, -1}, n)

	_, err = atoi("3", "x")
	assert.EqualError(t, err, `"x" is not a number`)
}
