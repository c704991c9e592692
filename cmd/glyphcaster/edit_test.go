package main

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseEditCommand(t *testing.T) {
	tests := []struct {
		line string
		want editCommand
	}{
		{"", editCommand{op: opPrint}},
		{"p", editCommand{op: opPrint}},
		{"  q", editCommand{op: opQuit}},
		{"h", editCommand{op: opHeads}},
		{"?", editCommand{op: opHelp}},
		{"a hello", editCommand{op: opAppend, text: "hello"}},
		{"a  two spaces", editCommand{op: opAppend, text: " two spaces"}},
		{`a line\n`, editCommand{op: opAppend, text: "line\n"}},
		{"i 3 abc", editCommand{op: opInsert, start: 3, text: "abc"}},
		{"i 0 👋🏽 hi", editCommand{op: opInsert, text: "👋🏽 hi"}},
		{"d 2 5", editCommand{op: opDelete, start: 2, end: 5}},
		{"d 4 4", editCommand{op: opDelete, start: 4, end: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseEditCommand(tt.line)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(editCommand{})); diff != "" {
				t.Errorf("parseEditCommand mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseEditCommand_Errors(t *testing.T) {
	for _, line := range []string{
		"x",
		"p now",
		"a",
		"i 3",
		"i x abc",
		"i -1 abc",
		"d 1",
		"d 5 2",
		"d a b",
	} {
		if _, err := parseEditCommand(line); !errors.Is(err, errBadCommand) {
			t.Errorf("parseEditCommand(%q): expected errBadCommand, got %v", line, err)
		}
	}
}

func TestUnescape(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{`tab\there`, "tab\there"},
		{`quote " and \n`, `quote " and \n`},
		{`bad \q`, `bad \q`},
	}
	for _, tt := range tests {
		if got := unescape(tt.in); got != tt.want {
			t.Errorf("unescape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNumbered(t *testing.T) {
	plain := func(a ...any) string { return fmt.Sprint(a...) }
	got := numbered("one\ntwo", plain)
	if want := "1 one\n2 two\n"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	text := ""
	for i := 0; i < 9; i++ {
		text += "x\n"
	}
	got = numbered(text, plain)
	if want := " 1 x\n"; got[:len(want)] != want {
		t.Errorf("expected padded numbers, got %q", got[:len(want)])
	}
}

func TestConnectLine(t *testing.T) {
	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000}
	tests := []struct {
		name string
		addr net.Addr
		want string
	}{
		{"not listening", nil, "glyph:abc node-1"},
		{"listening", addr, "glyph:abc node-1 on 127.0.0.1:4000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := connectLine("glyph:abc", "node-1", tt.addr); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
