package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sandevgo/lilybot/internal/config"
	"github.com/sandevgo/lilybot/internal/core"
	"github.com/sandevgo/lilybot/internal/service/ui"
	"github.com/sandevgo/lilybot/pkg/log"
)

type Handler interface {
	Handle(ctx context.Context, sessionID, text string, req core.Requester) (string, error)
}

// lineReader is the part of *readline.Instance the loop needs.
type lineReader interface {
	Readline() (string, error)
	Stdout() io.Writer
	Close() error
}

// ReadLine is the interactive terminal transport.
type ReadLine struct {
	handler Handler
	rl      lineReader
	session string
	req     core.Requester
}

func NewReadLine(handler Handler, cfg *config.AppConfig, session string, req core.Requester) (*ReadLine, error) {
	if err := os.MkdirAll(cfg.GetRuntimePath(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ui.PromptStyle.Render("you> "),
		HistoryFile:     filepath.Join(cfg.GetRuntimePath(), "input_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return newReadLine(handler, rl, session, req), nil
}

func newReadLine(handler Handler, rl lineReader, session string, req core.Requester) *ReadLine {
	return &ReadLine{handler: handler, rl: rl, session: session, req: req}
}

// Start reads lines until EOF, Ctrl-C on an empty line, /exit or ctx ends.
func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	out := r.rl.Stdout()
	fmt.Fprintln(out, ui.DescStyle.Render("Type a message, /help for commands, /exit to quit."))

	// Closing the instance unblocks a pending Readline.
	stop := context.AfterFunc(ctx, func() { _ = r.rl.Close() })
	defer stop()

	for {
		line, err := r.rl.Readline()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					return nil
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "/exit", "/quit":
			return nil
		}

		reply, err := r.handler.Handle(ctx, r.session, line, r.req)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error().Err(err).Msg("interaction failed")
			fmt.Fprintln(out, ui.ErrorStyle.Render("error: "+err.Error()))
			continue
		}
		fmt.Fprintln(out, ui.ReplyStyle.Render("lily> ")+reply)
	}
}

func (r *ReadLine) Shutdown(context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}
