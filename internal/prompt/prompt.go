package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

// ErrAbort is returned when the user types "quit" or "exit", or when input
// is closed while a prompt is waiting.
var ErrAbort = errors.New("aborted")

// Scanner collects user answers from a reader. A single goroutine reads
// lines and hands them over one at a time, so a prompt never blocks the
// caller past ctx cancellation.
type Scanner struct {
	in  io.Reader
	out io.Writer

	start sync.Once
	lines chan string
	done  chan struct{}
	stop  sync.Once
}

func New(in io.Reader, out io.Writer) *Scanner {
	return &Scanner{
		in:    in,
		out:   out,
		lines: make(chan string, 1),
		done:  make(chan struct{}),
	}
}

// Close stops handing over lines. It does not interrupt a blocked read of the
// underlying reader.
func (s *Scanner) Close() {
	s.stop.Do(func() { close(s.done) })
}

func (s *Scanner) read() {
	defer close(s.lines)
	sc := bufio.NewScanner(s.in)
	for sc.Scan() {
		select {
		case s.lines <- sc.Text():
		case <-s.done:
			return
		}
	}
	if err := sc.Err(); err != nil {
		slog.Debug("Input closed", "error", err)
	}
}

// Prompt asks question and returns the trimmed answer, which may be empty.
func (s *Scanner) Prompt(ctx context.Context, question, hint string) (string, error) {
	s.start.Do(func() { go s.read() })

	fmt.Fprintf(s.out, "%s ~ (%s) > ", question, hint)
	select {
	case line, ok := <-s.lines:
		if !ok {
			fmt.Fprintln(s.out)
			return "", ErrAbort
		}
		line = strings.TrimSpace(line)
		switch strings.ToLower(line) {
		case "quit", "exit":
			return "", ErrAbort
		}
		return line, nil
	case <-s.done:
		return "", ErrAbort
	case <-ctx.Done():
		fmt.Fprintln(s.out)
		return "", ctx.Err()
	}
}

// Confirm asks a yes or no question. An empty answer selects the default.
func (s *Scanner) Confirm(ctx context.Context, question string, defaultYes bool) (bool, error) {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}
	for {
		answer, err := s.Prompt(ctx, question, hint)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return defaultYes, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(s.out, "Error parsing input. Expected 'yes' or 'no'. Try again.")
	}
}

// Select lists options numbered from 1 and returns the chosen index, or -1
// for an empty answer.
func (s *Scanner) Select(ctx context.Context, question string, options []string) (int, error) {
	for {
		for i, opt := range options {
			fmt.Fprintf(s.out, "[%d] %s\n", i+1, opt)
		}
		answer, err := s.Prompt(ctx, question, "number")
		if err != nil {
			return 0, err
		}
		if answer == "" {
			return -1, nil
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n > 0 && n <= len(options) {
			return n - 1, nil
		}
		fmt.Fprintf(s.out, "Invalid option: %s. Try again.\n", answer)
	}
}
