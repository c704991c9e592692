package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-isatty"
	"github.com/scott-cotton/cli"
	"go.uber.org/zap"

	"github.com/dshills/glyphcaster/internal/engine/buffer"
	"github.com/dshills/glyphcaster/internal/loop"
	"github.com/dshills/glyphcaster/internal/repo"
	"github.com/dshills/glyphcaster/internal/textsync"
)

const editHelp = `commands (offsets count characters from 0):
  p               print the text
  a TEXT          append TEXT
  i OFFSET TEXT   insert TEXT at OFFSET
  d START END     delete START up to END
  h               show the version on screen
  q               quit
TEXT may use Go escapes such as \n.`

type EditConfig struct {
	*MainConfig
	Edit *cli.Command
	Line bool `cli:"name=line desc='use the line prompt even on a terminal'"`
}

func EditCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &EditConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Edit, "edit").
		WithSynopsis("edit [-line] [url]").
		WithDescription("edit a document while peers edit it too; without a URL a new document is created\n\n" +
			"On a terminal the document is shown full screen (Ctrl-Q or Esc quits).\n" +
			"Otherwise, or with -line, commands are read line by line:\n\n" + editHelp).
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return edit(cfg, cc, args)
		})
}

type editOp byte

const (
	opPrint  editOp = 'p'
	opAppend editOp = 'a'
	opInsert editOp = 'i'
	opDelete editOp = 'd'
	opHeads  editOp = 'h'
	opQuit   editOp = 'q'
	opHelp   editOp = '?'
)

type editCommand struct {
	op         editOp
	start, end int
	text       string
}

var errBadCommand = errors.New("bad command")

// parseEditCommand parses one line of the edit prompt.
func parseEditCommand(line string) (editCommand, error) {
	line = strings.TrimLeft(line, " \t")
	if line == "" {
		return editCommand{op: opPrint}, nil
	}
	op := editOp(line[0])
	rest := strings.TrimPrefix(line[1:], " ")

	switch op {
	case opPrint, opHeads, opQuit, opHelp:
		if strings.TrimSpace(rest) != "" {
			return editCommand{}, fmt.Errorf("%w: %c takes no arguments", errBadCommand, op)
		}
		return editCommand{op: op}, nil

	case opAppend:
		if rest == "" {
			return editCommand{}, fmt.Errorf("%w: a needs text", errBadCommand)
		}
		return editCommand{op: op, text: unescape(rest)}, nil

	case opInsert:
		num, text, ok := strings.Cut(rest, " ")
		if !ok || text == "" {
			return editCommand{}, fmt.Errorf("%w: i needs an offset and text", errBadCommand)
		}
		at, err := strconv.Atoi(num)
		if err != nil || at < 0 {
			return editCommand{}, fmt.Errorf("%w: offset %q", errBadCommand, num)
		}
		return editCommand{op: op, start: at, text: unescape(text)}, nil

	case opDelete:
		fields := strings.Fields(rest)
		if len(fields) != 2 {
			return editCommand{}, fmt.Errorf("%w: d needs a start and an end", errBadCommand)
		}
		start, err1 := strconv.Atoi(fields[0])
		end, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil || start < 0 || end < start {
			return editCommand{}, fmt.Errorf("%w: range %s..%s", errBadCommand, fields[0], fields[1])
		}
		return editCommand{op: op, start: start, end: end}, nil
	}
	return editCommand{}, fmt.Errorf("%w: unknown command %q", errBadCommand, string(op))
}

// unescape interprets Go escapes; text that is not a valid Go string body
// is taken literally.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	u, err := strconv.Unquote(`"` + s + `"`)
	if err != nil {
		return s
	}
	return u
}

// numbered formats text with line numbers.
func numbered(text string, num func(a ...any) string) string {
	var b strings.Builder
	lines := strings.Split(text, "\n")
	width := len(strconv.Itoa(len(lines)))
	for i, line := range lines {
		fmt.Fprintf(&b, "%s %s\n", num(fmt.Sprintf("%*d", width, i+1)), line)
	}
	return b.String()
}

func edit(cfg *EditConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Edit.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) > 1 {
		return fmt.Errorf("%w: edit takes at most one document URL", cli.ErrUsage)
	}

	ctx, stop := signalContext()
	defer stop()

	s, err := cfg.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.listen(ctx); err != nil {
		return err
	}

	var h *repo.Handle
	if len(args) == 1 {
		h, err = s.find(ctx, args[0])
	} else {
		h, err = s.repo.CreateText(ctx, s.cfg.Document.Key, s.cfg.Document.InitialText)
	}
	if err != nil {
		return err
	}

	lp := loop.New(loop.WithLogger(s.logger.Named("loop")))
	go func() {
		if err := lp.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("loop stopped", zap.Error(err))
		}
	}()
	defer lp.Stop()

	buf, sync, err := textsync.Attach(h,
		textsync.WithLocator(textsync.RootKey(s.cfg.Document.Key)),
		textsync.WithScheduler(lp),
		textsync.WithLogger(s.logger.Named("textsync")))
	if err != nil {
		return err
	}
	if err := sync.Start(ctx); err != nil {
		return err
	}
	defer sync.Stop()

	var addr net.Addr
	if a, err := s.node.Addr(); err == nil {
		addr = a
	}
	join := connectLine(h.URL(), s.node.ID(), addr)

	if !cfg.Line && isTerminal(os.Stdin) && isTerminal(os.Stdout) {
		screen, err := tcell.NewScreen()
		if err != nil {
			return err
		}
		return newScreenView(screen, buf, lp, sync, join).run(ctx)
	}

	e := &editor{
		out:  cc.Out,
		buf:  buf,
		loop: lp,
		sync: sync,
		num:  color.New(color.Faint).SprintFunc(),
		note: color.New(color.FgYellow).SprintFunc(),
	}
	fmt.Fprintf(cc.Out, "editing %s\n", color.New(color.FgCyan).Sprint(join))

	go e.notify(ctx, h.Changes(ctx))
	return e.run(ctx, cc.In, isTerminal(os.Stdin))
}

// connectLine is what another peer needs to join: the document URL, this
// node's id and, when listening, its address.
func connectLine(url, peerID string, addr net.Addr) string {
	line := url + " " + peerID
	if addr != nil {
		line += " on " + addr.String()
	}
	return line
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// editor runs the prompt. Every buffer access happens on loop.
type editor struct {
	out  io.Writer
	buf  *buffer.Buffer
	loop *loop.Loop
	sync *textsync.Synchronizer

	num  func(a ...any) string
	note func(a ...any) string
}

// notify reports document changes the screen does not show yet.
func (e *editor) notify(ctx context.Context, events <-chan repo.ChangeEvent) {
	for ev := range events {
		if ev.Heads.Equal(e.sync.ViewHeads()) {
			continue
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		fmt.Fprintln(e.out, e.note("* document changed by a peer"))
	}
}

func (e *editor) run(ctx context.Context, in io.Reader, interactive bool) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		if interactive {
			fmt.Fprint(e.out, "> ")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-e.sync.Done():
			return e.sync.Err()
		case line, ok := <-lines:
			if !ok {
				return e.sync.Err()
			}
			cmd, err := parseEditCommand(line)
			if err != nil {
				fmt.Fprintln(e.out, e.note(err.Error()))
				continue
			}
			if cmd.op == opQuit {
				return e.sync.Err()
			}
			if err := e.exec(ctx, cmd); err != nil {
				if errors.Is(err, buffer.ErrRangeInvalid) || errors.Is(err, buffer.ErrOffsetOutOfRange) {
					fmt.Fprintln(e.out, e.note(err.Error()))
					continue
				}
				return err
			}
		}
	}
}

func (e *editor) exec(ctx context.Context, cmd editCommand) error {
	switch cmd.op {
	case opHelp:
		fmt.Fprintln(e.out, editHelp)
		return nil
	case opHeads:
		fmt.Fprintln(e.out, e.sync.ViewHeads().String())
		return nil
	}

	var text string
	err := e.loop.Invoke(ctx, func() error {
		var err error
		switch cmd.op {
		case opAppend:
			_, err = e.buf.Insert(e.buf.Len(), cmd.text)
		case opInsert:
			_, err = e.buf.Insert(cmd.start, cmd.text)
		case opDelete:
			err = e.buf.Delete(cmd.start, cmd.end)
		}
		text = e.buf.Text()
		return err
	})
	if err != nil {
		return err
	}
	if err := e.sync.Err(); err != nil {
		return err
	}
	fmt.Fprint(e.out, numbered(text, e.num))
	return nil
}
