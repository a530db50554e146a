package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"codeduel/internal/cli/command"
	httpclient "codeduel/internal/cli/http"
	"codeduel/internal/cli/state"
	pkgerrors "codeduel/pkg/errors"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

const prompt = "codeduel> "

// LineReader is the part of *readline.Instance the session needs.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

// Session holds REPL state.
type Session struct {
	client     *httpclient.Client
	commands   map[string]command.Command
	state      *state.Session
	statePath  string
	prettyJSON bool
	out        io.Writer
}

func New(client *httpclient.Client, commands map[string]command.Command, st *state.Session, statePath string, prettyJSON bool, out io.Writer) *Session {
	return &Session{
		client:     client,
		commands:   commands,
		state:      st,
		statePath:  statePath,
		prettyJSON: prettyJSON,
		out:        out,
	}
}

// Completer builds tab completion for the registered commands.
func Completer(commands map[string]command.Command) *readline.PrefixCompleter {
	byService := map[string][]readline.PrefixCompleterInterface{}
	var services []string
	for _, name := range command.Names(commands) {
		cmd := commands[name]
		if _, ok := byService[cmd.Service]; !ok {
			services = append(services, cmd.Service)
		}
		byService[cmd.Service] = append(byService[cmd.Service], readline.PcItem(cmd.Action))
	}
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("help"),
		readline.PcItem("exit"),
		readline.PcItem("set", readline.PcItem("base"), readline.PcItem("timeout"), readline.PcItem("token"), readline.PcItem("player"), readline.PcItem("room")),
		readline.PcItem("show", readline.PcItem("session"), readline.PcItem("config")),
		readline.PcItem("clear"),
	}
	for _, service := range services {
		items = append(items, readline.PcItem(service, byService[service]...))
	}
	return readline.NewPrefixCompleter(items...)
}

// Run reads commands until exit, EOF or ctx is done.
func (s *Session) Run(ctx context.Context, reader LineReader) {
	for {
		if ctx.Err() != nil {
			return
		}
		reader.SetPrompt(prompt)
		line, err := reader.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.printLine("read input failed: %v", err)
			}
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			s.printLine("bye")
			return
		}
		if s.handleSystemCommand(line) {
			continue
		}

		if err := s.handleCommand(ctx, reader, line); err != nil {
			s.printLine("error: %v", err)
		}
	}
}

func (s *Session) handleSystemCommand(line string) bool {
	switch line {
	case "help":
		s.printHelp()
		return true
	case "clear":
		*s.state = state.Session{}
		if err := state.Clear(s.statePath); err != nil {
			s.printLine("clear session failed: %v", err)
			return true
		}
		s.printLine("session cleared")
		return true
	}
	if strings.HasPrefix(line, "set ") {
		s.handleSet(strings.TrimSpace(strings.TrimPrefix(line, "set ")))
		return true
	}
	if strings.HasPrefix(line, "show ") {
		s.handleShow(strings.TrimSpace(strings.TrimPrefix(line, "show ")))
		return true
	}
	return false
}

func (s *Session) handleSet(args string) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		s.printLine("usage: set base|timeout|token|player|room <value>")
		return
	}
	value := parts[1]
	switch parts[0] {
	case "base":
		s.client.SetBaseURL(value)
		s.printLine("base set to %s", value)
		return
	case "timeout":
		dur, err := time.ParseDuration(value)
		if err != nil {
			s.printLine("invalid duration: %v", err)
			return
		}
		s.client.SetTimeout(dur)
		s.printLine("timeout set to %s", dur)
		return
	case "token":
		s.state.AccessToken = value
	case "player":
		s.state.PlayerID = value
	case "room":
		s.state.RoomID = value
	default:
		s.printLine("unknown set command")
		return
	}
	if err := state.Save(s.statePath, *s.state); err != nil {
		s.printLine("save session failed: %v", err)
		return
	}
	s.printLine("%s updated", parts[0])
}

func (s *Session) handleShow(args string) {
	switch args {
	case "session":
		s.printLine("player: %s", orEmpty(s.state.PlayerID))
		s.printLine("room: %s", orEmpty(s.state.RoomID))
		s.printLine("token: %s", maskToken(s.state.AccessToken))
	case "config":
		s.printLine("base: %s", s.client.BaseURL())
		s.printLine("statePath: %s", s.statePath)
	default:
		s.printLine("usage: show session|config")
	}
}

func (s *Session) handleCommand(ctx context.Context, reader LineReader, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) < 2 {
		return fmt.Errorf("invalid command, use: <service> <action> key=value ...")
	}
	key := fmt.Sprintf("%s %s", tokens[0], tokens[1])
	cmd, ok := s.commands[key]
	if !ok {
		return fmt.Errorf("unknown command: %s", key)
	}
	params := command.Params{}
	for _, token := range tokens[2:] {
		parts := strings.SplitN(token, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid param: %s", token)
		}
		params.Set(parts[0], parts[1])
	}

	params.Canonicalize(cmd.Fields)
	params.ApplyShortcuts(cmd.Fields)
	params.FillFromSession(cmd.Fields, map[string]string{
		command.SessionPlayer: s.state.PlayerID,
		command.SessionRoom:   s.state.RoomID,
	})
	for _, field := range params.Missing(cmd.Fields) {
		reader.SetPrompt(field.Prompt + ": ")
		value, err := reader.Readline()
		if err != nil {
			return fmt.Errorf("read input failed: %w", err)
		}
		params.Set(field.Name, strings.TrimSpace(value))
	}

	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(ctx, req.Method, req.Path, req.Body)
	if err != nil {
		return err
	}
	s.renderResponse(resp)
	return nil
}

func (s *Session) renderResponse(resp httpclient.ResponseInfo) {
	s.printLine("HTTP %d (%s)", resp.StatusCode, resp.Duration.Round(time.Millisecond))
	if len(resp.Body) == 0 {
		return
	}
	if env, ok := resp.Envelope(); ok && env.Code != int(pkgerrors.Success) {
		s.printLine("%d %s", env.Code, env.Message)
		if len(env.Details) > 0 {
			s.printLine("details: %s", string(env.Details))
		}
		if env.TraceID != "" {
			s.printLine("trace: %s", env.TraceID)
		}
		return
	}
	if s.prettyJSON {
		var raw interface{}
		if err := json.Unmarshal(resp.Body, &raw); err == nil {
			formatted, _ := json.MarshalIndent(raw, "", "  ")
			s.printLine("%s", string(formatted))
			return
		}
	}
	s.printLine("%s", string(resp.Body))
}

func (s *Session) printHelp() {
	s.printLine("usage: <service> <action> key=value ...")
	s.printLine("system: help | exit | clear | set base|timeout|token|player|room <value> | show session|config")
	s.printLine("commands:")
	for _, name := range command.Names(s.commands) {
		s.printLine("  %s", name)
	}
	s.printLine("examples:")
	s.printLine("  set room r1")
	s.printLine("  tournament round")
	s.printLine("  match submit problem=0000 lang=python3 file=./solution.py player=p1")
}

func (s *Session) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format+"\n", args...)
}

func maskToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	if len(token) > 12 {
		return token[:6] + "..." + token[len(token)-4:]
	}
	return token
}

func orEmpty(value string) string {
	if value == "" {
		return "<empty>"
	}
	return value
}
