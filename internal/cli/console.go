package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// errQuit ends a session cleanly.
var errQuit = errors.New("quit")

type command struct {
	usage string
	min   int
	help  string
	run   func(args []string) error
}

// console reads one command per line and writes everything the user sees.
type console struct {
	mu      sync.Mutex
	out     io.Writer
	cmds    map[string]command
	lastSeq int
	myTurn  bool
}

func newConsole(out io.Writer) *console {
	return &console{out: out, cmds: make(map[string]command)}
}

func (c *console) add(name, usage string, min int, help string, run func(args []string) error) {
	c.cmds[name] = command{usage: usage, min: min, help: help, run: run}
}

func (c *console) printf(format string, a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, a...)
}

// exec runs one line. Command errors are shown, not returned; only quit ends
// the session.
func (c *console) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name := strings.ToLower(fields[0])
	switch name {
	case "quit", "exit":
		return errQuit
	case "help":
		c.help()
		return nil
	}
	cmd, ok := c.cmds[name]
	if !ok {
		c.printf("unknown command %q; try help\n", name)
		return nil
	}
	args := fields[1:]
	if len(args) < cmd.min {
		c.printf("usage: %s %s\n", name, cmd.usage)
		return nil
	}
	if err := cmd.run(args); err != nil {
		c.printf("%s: %v\n", name, err)
	}
	return nil
}

func (c *console) help() {
	names := make([]string, 0, len(c.cmds))
	for n := range c.cmds {
		names = append(names, n)
	}
	sort.Strings(names)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range names {
		cmd := c.cmds[n]
		fmt.Fprintf(c.out, "  %-28s %s\n", strings.TrimSpace(n+" "+cmd.usage), cmd.help)
	}
	fmt.Fprintf(c.out, "  %-28s %s\n", "quit", "leave the table")
}

// run executes lines from in until quit, end of input, or ctx is done. End
// of input counts as quit.
func (c *console) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	done := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		done <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-done:
			if err != nil {
				return fmt.Errorf("reading commands: %w", err)
			}
			return errQuit
		case line := <-lines:
			if err := c.exec(line); err != nil {
				return err
			}
		}
	}
}

func atoi(args ...string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", a)
		}
		out[i] = n
	}
	return out, nil
}
