package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/studio-concierge/backend/internal/config"
	"github.com/zhouzirui/studio-concierge/backend/internal/model/chat"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/events"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/reply"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/turn"
)

var (
	realtimeFlag bool
	scriptFlag   string
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the widget (stdin or --script, one utterance per line)",
		Run:   runChat,
	}
	cmd.Flags().BoolVar(&realtimeFlag, "realtime", false, "Honour typing/handoff/lead delays from the environment")
	cmd.Flags().StringVar(&scriptFlag, "script", "", "File with one utterance per line")

	rootCmd.AddCommand(cmd)
}

// printer renders session events as a transcript. In realtime mode it also signals
// when a turn has finished.
type printer struct {
	out  io.Writer
	idle chan struct{}
}

func (p *printer) Publish(ev events.Event) {
	switch ev.Type {
	case events.TypeHandoff:
		fmt.Fprintf(p.out, "  ~ %s\n", ev.Message.Text)
	case events.TypeTyping:
		if realtimeFlag {
			fmt.Fprintf(p.out, "  … %s yazıyor\n", ev.Message.PersonaName)
		}
	case events.TypeMessageReplaced:
		fmt.Fprintf(p.out, "%s (%s): %s\n", ev.Message.PersonaName, ev.Message.PersonaTitle, ev.Message.Text)
	case events.TypeMessage:
		if ev.Message != nil && ev.Message.Confirmation {
			fmt.Fprintf(p.out, "%s: %s\n", ev.Message.PersonaName, ev.Message.Text)
		}
	case events.TypeLeadForm:
		if ev.Visible != nil && *ev.Visible {
			fmt.Fprintln(p.out, "  [teklif formu açıldı]")
		}
	case events.TypeNotice:
		fmt.Fprintf(p.out, "  ! %s\n", ev.Notice)
	case events.TypeState:
		if ev.State == chat.StateIdle && p.idle != nil {
			p.idle <- struct{}{}
		}
	}
}

func runChat(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := loadPersonas()
	if err != nil {
		exitErr("load personas", err)
	}

	engine, err := turn.NewEngine(ctx, store, reply.New(newPicker()), turn.EngineConfig{}, slog.Default())
	if err != nil {
		exitErr("init engine", err)
	}

	out := cmd.OutOrStdout()
	p := &printer{out: out}
	opts := []turn.OrchestratorOption{turn.WithListener(p), turn.WithLogger(slog.Default())}
	if realtimeFlag {
		cfg, err := config.Load()
		if err != nil {
			exitErr("load configuration", err)
		}
		p.idle = make(chan struct{}, 1)
		opts = append(opts,
			turn.WithScheduler(turn.NewTimerScheduler()),
			turn.WithDelays(turn.Delays{
				Typing:   cfg.Widget.TypingDelay,
				Handoff:  cfg.Widget.HandoffDelay,
				LeadForm: cfg.Widget.LeadFormDelay,
			}))
	} else {
		opts = append(opts, turn.WithScheduler(turn.ImmediateScheduler{}))
	}

	session := turn.NewOrchestrator("chatsim", engine, opts...)
	defer session.Close()

	greeter := session.ActivePersona()
	for _, msg := range session.Snapshot().Messages {
		fmt.Fprintf(out, "%s (%s): %s\n", greeter.Name, greeter.Title, msg.Text)
	}

	var in io.Reader = cmd.InOrStdin()
	if scriptFlag != "" {
		f, err := os.Open(scriptFlag)
		if err != nil {
			exitErr("open script", err)
		}
		defer f.Close()
		in = f
	}

	scanner := bufio.NewScanner(in)
	for {
		if scriptFlag == "" {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if scriptFlag != "" {
			fmt.Fprintf(out, "> %s\n", text)
		}

		if _, err := session.Send(ctx, text); err != nil {
			fmt.Fprintf(out, "  ! %v\n", err)
			continue
		}
		if p.idle != nil {
			select {
			case <-p.idle:
			case <-time.After(time.Minute):
				exitErr("wait for reply", context.DeadlineExceeded)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		exitErr("read input", err)
	}

	snap := session.Snapshot()
	fmt.Fprintf(out, "\n%d tur, bağlam: konular=%v proje=%q bütçe=%q zaman=%q\n",
		snap.Turns, snap.Context.MentionedTopics, snap.Context.ProjectType, snap.Context.Budget, snap.Context.Timeline)
}
