package main

import (
	"context"
	"errors"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"

	"github.com/dshills/glyphcaster/internal/engine/buffer"
	"github.com/dshills/glyphcaster/internal/loop"
	"github.com/dshills/glyphcaster/internal/textsync"
)

const tabWidth = 4

// screenView is the full-screen editor. cursor, top and dirty belong to the
// loop goroutine, like the buffer.
type screenView struct {
	screen tcell.Screen
	buf    *buffer.Buffer
	loop   *loop.Loop
	sync   *textsync.Synchronizer
	title  string

	cursor int
	top    int
	dirty  bool
}

func newScreenView(screen tcell.Screen, buf *buffer.Buffer, lp *loop.Loop, sync *textsync.Synchronizer, title string) *screenView {
	return &screenView{
		screen: screen,
		buf:    buf,
		loop:   lp,
		sync:   sync,
		title:  title,
	}
}

// track keeps the cursor on the same text across edits from either side and
// schedules a redraw after each one.
func (v *screenView) track() (cancel func()) {
	return v.buf.Observe(buffer.ObserverFuncs{
		OnInsert: func(offset buffer.Offset, text string) {
			if offset <= v.cursor {
				v.cursor += uniseg.GraphemeClusterCount(text)
			}
			v.invalidate()
		},
		OnDelete: func(start, end buffer.Offset) {
			if v.cursor > start {
				v.cursor -= min(v.cursor, end) - start
			}
			v.invalidate()
		},
	})
}

func (v *screenView) invalidate() {
	if v.dirty || v.screen == nil {
		return
	}
	v.dirty = true
	v.loop.Post(v.draw)
}

// run shows the screen until the user quits or synchronization stops.
func (v *screenView) run(ctx context.Context) error {
	if err := v.screen.Init(); err != nil {
		return err
	}
	defer v.screen.Fini()
	v.screen.EnablePaste()
	defer v.track()()

	events := make(chan tcell.Event)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()

	v.loop.Post(v.draw)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-v.sync.Done():
			return v.sync.Err()
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				v.screen.Sync()
				v.loop.Post(v.draw)
			case *tcell.EventKey:
				var done bool
				err := v.loop.Invoke(ctx, func() error {
					var err error
					done, err = v.key(ev)
					v.draw()
					return err
				})
				if err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				if done {
					return v.sync.Err()
				}
			}
		}
	}
}

// key applies one key press. It runs on the loop.
func (v *screenView) key(ev *tcell.EventKey) (quit bool, err error) {
	n := v.buf.Len()
	switch ev.Key() {
	case tcell.KeyCtrlQ, tcell.KeyEscape:
		return true, nil
	case tcell.KeyRune:
		_, err = v.buf.Insert(v.cursor, string(ev.Rune()))
	case tcell.KeyEnter:
		_, err = v.buf.Insert(v.cursor, "\n")
	case tcell.KeyTab:
		_, err = v.buf.Insert(v.cursor, "\t")
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if v.cursor > 0 {
			err = v.buf.Delete(v.cursor-1, v.cursor)
		}
	case tcell.KeyDelete:
		if v.cursor < n {
			err = v.buf.Delete(v.cursor, v.cursor+1)
		}
	case tcell.KeyLeft:
		if v.cursor > 0 {
			v.cursor--
		}
	case tcell.KeyRight:
		if v.cursor < n {
			v.cursor++
		}
	case tcell.KeyUp, tcell.KeyDown, tcell.KeyHome, tcell.KeyEnd:
		clusters := v.buf.Snapshot().Clusters()
		line, col := locate(clusters, v.cursor)
		switch ev.Key() {
		case tcell.KeyUp:
			line--
		case tcell.KeyDown:
			line++
		case tcell.KeyHome:
			col = 0
		case tcell.KeyEnd:
			col = n
		}
		if line >= 0 {
			v.cursor = offsetAt(clusters, line, col)
		}
	}
	return false, err
}

// draw renders the visible lines and the status line. It runs on the loop.
func (v *screenView) draw() {
	v.dirty = false
	clusters := v.buf.Snapshot().Clusters()
	width, height := v.screen.Size()
	rows := max(height-1, 1)

	line, _ := locate(clusters, v.cursor)
	if line < v.top {
		v.top = line
	}
	if line >= v.top+rows {
		v.top = line - rows + 1
	}

	v.screen.Clear()
	style := tcell.StyleDefault
	x, y := 0, 0
	cx, cy := 0, 0
	for i, c := range clusters {
		if i == v.cursor {
			cx, cy = x, y
		}
		if isLineBreak(c) {
			x = 0
			y++
			continue
		}
		w := clusterWidth(c, x)
		row := y - v.top
		if row >= 0 && row < rows && x+w <= width {
			if c == "\t" {
				for j := 0; j < w; j++ {
					v.screen.SetContent(x+j, row, ' ', nil, style)
				}
			} else {
				r := []rune(c)
				v.screen.SetContent(x, row, r[0], r[1:], style)
			}
		}
		x += w
	}
	if v.cursor >= len(clusters) {
		cx, cy = x, y
	}

	status := tcell.StyleDefault.Reverse(true)
	col := 0
	for _, r := range v.title {
		if col >= width {
			break
		}
		v.screen.SetContent(col, height-1, r, nil, status)
		col++
	}
	for ; col < width; col++ {
		v.screen.SetContent(col, height-1, ' ', nil, status)
	}

	v.screen.ShowCursor(cx, cy-v.top)
	v.screen.Show()
}

func isLineBreak(c string) bool {
	return c == "\n" || c == "\r\n"
}

// clusterWidth is the number of cells c takes when drawn at column x.
func clusterWidth(c string, x int) int {
	if c == "\t" {
		return tabWidth - x%tabWidth
	}
	return max(uniseg.StringWidth(c), 1)
}

// locate returns the line and column, both in clusters, of offset.
func locate(clusters []string, offset int) (line, col int) {
	for i := 0; i < offset && i < len(clusters); i++ {
		if isLineBreak(clusters[i]) {
			line++
			col = 0
		} else {
			col++
		}
	}
	return line, col
}

// offsetAt is the inverse of locate. Columns past the end of a line and
// lines past the end of the text are clamped.
func offsetAt(clusters []string, line, col int) int {
	l, c := 0, 0
	for i, s := range clusters {
		if l == line && (c == col || isLineBreak(s)) {
			return i
		}
		if isLineBreak(s) {
			l++
			c = 0
			continue
		}
		c++
	}
	return len(clusters)
}
