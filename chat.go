package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"go.aimuz.me/prakriti/hotkey"
	"go.aimuz.me/prakriti/internal/app"
	"go.aimuz.me/prakriti/internal/types"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a chat session",
	Long: `Start an interactive chat session with the assistant.

Type a message and press enter to send it. Replies to voice turns are read
aloud. Commands:

  /mic                      record a voice turn, ends on silence
  /stop                     end the recording now
  /image <path> [caption]   send a picture
  /screenshot [caption]     select a screen region and send it
  /quit                     leave`,
	RunE: runChat,
}

// command is one parsed input line.
type command struct {
	name string // "" for a plain message
	arg  string
	text string
}

// parseLine splits a REPL line into a command. Lines not starting with a
// slash are messages.
func parseLine(line string) command {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{text: line}
	}
	name, rest, _ := strings.Cut(line[1:], " ")
	cmd := command{name: strings.ToLower(name)}
	rest = strings.TrimSpace(rest)
	switch cmd.name {
	case "image":
		cmd.arg, cmd.text, _ = strings.Cut(rest, " ")
		cmd.text = strings.TrimSpace(cmd.text)
	default:
		cmd.text = rest
	}
	return cmd
}

// console serializes writes from the REPL and the event callbacks.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// emit renders service events.
func (c *console) emit(name string, data any) {
	switch name {
	case app.EventMessage:
		m := data.(types.Message)
		c.printf("%s\n", formatMessage(m))
	case app.EventNotice:
		c.printf("! %s\n", data)
	case app.EventTurnState:
		if data == types.TurnAwaitingResponse.String() {
			c.printf("… waiting for reply\n")
		}
	case app.EventConnection:
		st := data.(app.ConnectionStatus)
		if st.State == types.ConnOpen.String() {
			c.printf("· connected\n")
		}
	case app.EventInputLevel:
		lv := data.(app.InputLevel)
		if lv.Seq%15 == 0 {
			c.printf("🎤 %s\n", meter(lv.Level))
		}
	}
}

func formatMessage(m types.Message) string {
	who := "You"
	if m.Role == types.RoleAssistant {
		who = "Prakriti"
	}
	s := who + ": " + m.Text
	if m.ImageRef != "" {
		s += "\n    [" + m.ImageRef + "]"
	}
	return s
}

// meter draws a level of 0..255 as up to 16 bars.
func meter(level float64) string {
	n := int(level / 16)
	n = max(0, min(n, 16))
	return strings.Repeat("▮", n) + strings.Repeat("·", 16-n)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := &console{out: cmd.OutOrStdout()}
	svc := app.New(version)
	if err := svc.Init(ctx, cfg, out.emit); err != nil {
		return err
	}
	defer svc.Shutdown()

	ptt := setupPushToTalk(ctx, svc, cfg.Audio.PushToTalkKeys)
	if ptt != nil {
		defer ptt.Stop()
		out.printf("· push-to-talk: %s\n", strings.Join(ptt.Keys(), "+"))
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(cmd.InOrStdin())
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, svc, out, line); quit {
				return nil
			}
		}
	}
}

// handleLine runs one REPL line and reports whether the session should end.
// Outcomes that need attention are already shown through notice events.
func handleLine(ctx context.Context, svc *app.Service, out *console, line string) bool {
	c := parseLine(line)
	switch c.name {
	case "":
		if c.text != "" {
			svc.Send(ctx, c.text)
		}
	case "mic":
		if svc.StartRecording(ctx).Status == types.StatusOK {
			out.printf("· recording, pause to send or type /stop\n")
		}
	case "stop":
		svc.StopRecording()
	case "image":
		if c.arg == "" {
			out.printf("usage: /image <path> [caption]\n")
			return false
		}
		svc.SendImage(ctx, c.arg, c.text)
	case "screenshot":
		svc.SendScreenshot(ctx, c.text)
	case "quit", "exit":
		return true
	default:
		out.printf("unknown command /%s\n", c.name)
	}
	return false
}

// setupPushToTalk registers the global shortcut when keys are configured.
// Failures leave the REPL commands as the only way to record.
func setupPushToTalk(ctx context.Context, svc *app.Service, keys []string) *hotkey.HotkeyManager {
	if len(keys) == 0 {
		return nil
	}
	m, err := hotkey.NewHotkeyManager(keys, func() {
		if svc.Recording() {
			svc.StopRecording()
			return
		}
		svc.StartRecording(ctx)
	})
	if err != nil {
		slog.Warn("push-to-talk disabled", "error", err)
		return nil
	}
	if err := m.Start(); err != nil {
		slog.Warn("push-to-talk disabled", "error", err)
		return nil
	}
	return m
}
