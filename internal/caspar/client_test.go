/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package caspar

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeAMCP accepts one connection and answers each command with the next
// scripted response.
func fakeAMCP(t *testing.T, respond func(cmd string) string) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.TrimRight(line, "\r\n")
			if _, err := conn.Write([]byte(respond(cmd))); err != nil {
				return
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func dialFake(t *testing.T, respond func(cmd string) string) *Client {
	t.Helper()
	host, port := fakeAMCP(t, respond)
	c, err := Dial(host, port, 1, 10, zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClientCommands(t *testing.T) {
	var mu sync.Mutex
	var cmds []string
	c := dialFake(t, func(cmd string) string {
		mu.Lock()
		cmds = append(cmds, cmd)
		mu.Unlock()
		switch {
		case strings.HasPrefix(cmd, "PLAY"):
			return "202 PLAY OK\r\n"
		case strings.HasPrefix(cmd, "LOADBG"):
			return "202 LOADBG OK\r\n"
		case strings.HasPrefix(cmd, "CLEAR"):
			return "202 CLEAR OK\r\n"
		default:
			return "400 ERROR\r\n" + cmd + "\r\n"
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Play(ctx, "sponsor_a"); err != nil {
		t.Errorf("Play: %v", err)
	}
	if err := c.LoadbgAuto(ctx, "clip with spaces"); err != nil {
		t.Errorf("LoadbgAuto: %v", err)
	}
	if err := c.Clear(ctx); err != nil {
		t.Errorf("Clear: %v", err)
	}

	want := []string{
		"PLAY 1-10 sponsor_a",
		`LOADBG 1-10 "clip with spaces" AUTO`,
		"CLEAR 1",
	}
	mu.Lock()
	defer mu.Unlock()
	if len(cmds) != len(want) {
		t.Fatalf("commands = %v, want %v", cmds, want)
	}
	for i := range want {
		if cmds[i] != want[i] {
			t.Errorf("command %d = %q, want %q", i, cmds[i], want[i])
		}
	}
}

func TestClientCommandFailure(t *testing.T) {
	c := dialFake(t, func(cmd string) string {
		return "400 ERROR\r\n" + cmd + "\r\n"
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Play(ctx, "missing"); err == nil {
		t.Error("Play against a 400 response should fail")
	}
}

func TestClientRefreshFiles(t *testing.T) {
	listing := "200 CLS OK\r\n" +
		"\"sponsor_a.mp4\"  MOVIE  6445960 20240629190220 268 1/60\r\n" +
		"\"logo.png\"  STILL  151011 20240629190505 0 0/0\r\n" +
		"\r\n"
	c := dialFake(t, func(cmd string) string {
		if cmd == "CLS" {
			return listing
		}
		return "202 OK\r\n"
	})

	changes := 0
	c.OnFilesChange(func(old, new []File) { changes++ })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.refreshFiles(ctx)
	c.refreshFiles(ctx) // identical listing, no change event

	files := c.Files()
	if len(files) != 2 {
		t.Fatalf("files = %v, want 2 entries", files)
	}
	want := File{NameWithExt: "sponsor_a.mp4", Type: "video", Frames: 268, FrameRate: 60}
	if files[0] != want {
		t.Errorf("file = %+v, want %+v", files[0], want)
	}
	if files[1].Type != "image" || files[1].NameWithExt != "logo.png" {
		t.Errorf("file = %+v, want an image logo.png", files[1])
	}
	if changes != 1 {
		t.Errorf("change events = %d, want 1", changes)
	}
}

func TestParseCLSLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    File
		wantErr bool
	}{
		{
			name: "movie",
			line: `"media/sponsor_a.mp4"  MOVIE  6445960 20240629190220 268 1/60`,
			want: File{NameWithExt: "media/sponsor_a.mp4", Type: "video", Frames: 268, FrameRate: 60},
		},
		{
			name: "still",
			line: `"logo.png"  STILL  151011 20240629190505 0 0/0`,
			want: File{NameWithExt: "logo.png", Type: "image"},
		},
		{
			name: "audio",
			line: `"sting.wav"  AUDIO  4409244 20240629190300 0 0/0`,
			want: File{NameWithExt: "sting.wav", Type: "audio"},
		},
		{name: "unquoted name", line: `sponsor.mp4 MOVIE 1 2 3 1/60`, wantErr: true},
		{name: "unterminated name", line: `"sponsor.mp4 MOVIE`, wantErr: true},
		{name: "unknown type", line: `"x.bin"  TEMPLATE  1 2`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCLSLine(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCLSLine: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseCLSLine = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseTimebase(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1/60", 60},
		{"1/25", 25},
		{"1001/30000", 30000.0 / 1001.0},
		{"0/0", 0},
		{"50", 50},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := parseTimebase(tt.in); got != tt.want {
			t.Errorf("parseTimebase(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseStatusLine(t *testing.T) {
	code, rest, ok := parseStatusLine("202 PLAY OK")
	if !ok || code != 202 || rest != "PLAY OK" {
		t.Errorf("parseStatusLine = %d, %q, %v", code, rest, ok)
	}
	if _, _, ok := parseStatusLine("#0 not a status"); ok {
		t.Error("non-status line accepted")
	}
	if _, _, ok := parseStatusLine("999 out of range"); ok {
		t.Error("out-of-range code accepted")
	}
}

func TestClipName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"sponsor_a.mp4", "sponsor_a"},
		{"logo.png", "logo"},
		{"no_extension", "no_extension"},
		{"dir/clip.mov", "dir/clip"},
	}
	for _, tt := range tests {
		if got := ClipName(tt.in); got != tt.want {
			t.Errorf("ClipName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
