package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeduel/internal/cli/command"
	"codeduel/internal/cli/config"
	"codeduel/internal/cli/http"
	"codeduel/internal/cli/repl"
	"codeduel/internal/cli/state"

	"github.com/chzyer/readline"
)

const defaultConfigPath = "configs/cli.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	baseURL := flag.String("base", "", "Override base URL")
	timeout := flag.Duration("timeout", 0, "Override HTTP timeout (e.g. 10s)")
	token := flag.String("token", "", "Override access token")
	player := flag.String("player", "", "Override default player id")
	statePath := flag.String("state", "", "Override session state path")
	pretty := flag.Bool("pretty", false, "Pretty print JSON response")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		return
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *statePath != "" {
		cfg.StatePath = *statePath
	}
	if *pretty {
		trueValue := true
		cfg.PrettyJSON = &trueValue
	}

	session, err := state.Load(cfg.StatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load session state failed: %v\n", err)
		return
	}
	if *token != "" {
		session.AccessToken = *token
	}
	if *player != "" {
		session.PlayerID = *player
	}

	client := httpclient.New(cfg.BaseURL, cfg.Timeout, func() string {
		return session.AccessToken
	})

	commands := command.Registry()
	rl, err := readline.NewEx(&readline.Config{
		HistoryFile:     cfg.HistoryPath,
		AutoComplete:    repl.Completer(commands),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init line editor failed: %v\n", err)
		return
	}
	defer func() {
		_ = rl.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	repl.New(client, commands, &session, cfg.StatePath, cfg.PrettyJSON != nil && *cfg.PrettyJSON, rl.Stdout()).Run(ctx, rl)
}
