// Package main is the entry point for the terminal chat client.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-client/internal/api"
	"github.com/capitalize-ai/chat-client/internal/auth"
	"github.com/capitalize-ai/chat-client/internal/chat"
	"github.com/capitalize-ai/chat-client/internal/config"
	"github.com/capitalize-ai/chat-client/internal/credential"
	"github.com/capitalize-ai/chat-client/internal/model"
	"github.com/capitalize-ai/chat-client/pkg/logger"
	"github.com/capitalize-ai/chat-client/pkg/tracing"
)

func main() {
	cfg := config.Load()

	// Logs go to a rotating file so stdout stays free for the prompt.
	log := logger.NewFile(cfg.LogLevel, cfg.LogFile)
	defer log.Sync()

	log.Info("starting chat client", zap.String("base_url", cfg.BaseURL))

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chat-client", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	if cfg.DebugAddr != "" {
		go serveDebug(cfg.DebugAddr, log)
	}

	creds := credential.NewFileStore(cfg.CredentialsFile)
	client := api.New(cfg.BaseURL, cfg.HTTPTimeout, creds, log)
	controller := auth.NewController(client, creds, log)
	directory := chat.NewDirectory(client, log)

	controller.OnChange(func(state auth.State, user *model.User) {
		switch state {
		case auth.StateAuthenticated:
			fmt.Printf("signed in as %s\n", user.Email)
		case auth.StateUnauthenticated:
			fmt.Println("signed out")
		}
	})

	// Identity probe before anything else; no chat command is reachable
	// while resolving.
	if controller.Resolve(ctx) == auth.StateAuthenticated {
		if _, err := directory.Refresh(ctx); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	} else {
		fmt.Println("not signed in; use /login <email> <password>")
	}

	repl(ctx, cfg, controller, directory)
}

func serveDebug(addr string, log *logger.Logger) {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	log.Info("debug server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Warn("debug server stopped", zap.Error(err))
	}
}

func repl(ctx context.Context, cfg *config.Config, controller *auth.Controller, directory *chat.Directory) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("type /help for commands")

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			sendMessage(ctx, controller, directory, line)
			continue
		}

		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "/help":
			printHelp()
		case "/quit", "/exit":
			return
		case "/login":
			if len(args) != 2 {
				fmt.Println("usage: /login <email> <password>")
				continue
			}
			if _, err := controller.Login(ctx, args[0], args[1]); err != nil {
				fmt.Printf("login failed: %v\n", err)
				continue
			}
			if _, err := directory.Refresh(ctx); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		case "/register":
			if len(args) < 2 {
				fmt.Println("usage: /register <email> <password> [full name]")
				continue
			}
			req := model.RegisterRequest{
				Email:    args[0],
				Password: args[1],
				FullName: strings.Join(args[2:], " "),
			}
			if _, err := controller.Register(ctx, req); err != nil {
				fmt.Printf("registration failed: %v\n", err)
				continue
			}
			fmt.Println("registered; use /login to sign in")
		case "/logout":
			controller.Logout(ctx)
		default:
			if !requireAuth(controller) {
				continue
			}
			runChatCommand(ctx, cfg, directory, cmd, args)
		}
	}
}

func requireAuth(controller *auth.Controller) bool {
	if controller.State() != auth.StateAuthenticated {
		fmt.Println("not signed in; use /login <email> <password>")
		return false
	}
	return true
}

func runChatCommand(ctx context.Context, cfg *config.Config, directory *chat.Directory, cmd string, args []string) {
	switch cmd {
	case "/sessions":
		if _, err := directory.Refresh(ctx); err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		for _, s := range directory.Sessions() {
			marker := " "
			if active := directory.Active(); active != nil && active.ID() == s.ID {
				marker = "*"
			}
			fmt.Printf("%s %s  %-30s %s\n", marker, s.ID, s.Title, s.LLMModel)
		}
	case "/new":
		llmModel := cfg.DefaultModel
		if len(args) > 0 {
			llmModel = args[0]
		}
		stream, err := directory.Create(ctx, llmModel)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Printf("created session %s\n", stream.ID())
	case "/open":
		if len(args) != 1 {
			fmt.Println("usage: /open <session-id>")
			return
		}
		stream, err := directory.Select(ctx, args[0])
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		for _, m := range stream.Messages() {
			fmt.Printf("[%s] %s\n", m.Role, m.Content)
		}
	case "/restart":
		if len(args) != 1 {
			fmt.Println("usage: /restart <session-id>")
			return
		}
		stream, err := directory.Restart(ctx, args[0])
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Printf("restarted as session %s\n", stream.ID())
	case "/delete":
		if len(args) != 1 {
			fmt.Println("usage: /delete <session-id>")
			return
		}
		if err := directory.Delete(ctx, args[0]); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	default:
		fmt.Printf("unknown command %s; type /help\n", cmd)
	}
}

func sendMessage(ctx context.Context, controller *auth.Controller, directory *chat.Directory, content string) {
	if !requireAuth(controller) {
		return
	}
	stream := directory.Active()
	if stream == nil {
		fmt.Println("no active session; use /new or /open <session-id>")
		return
	}

	reply, err := stream.Send(ctx, content)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("[assistant] %s\n", reply.Content)
}

func printHelp() {
	fmt.Print(`commands:
  /login <email> <password>         sign in
  /register <email> <password> [name]  create an account
  /logout                           sign out
  /sessions                         list chat sessions
  /new [model]                      create a session
  /open <session-id>                open a session
  /restart <session-id>             restart a session
  /delete <session-id>              delete a session
  /quit                             exit
anything else is sent to the active session
`)
}
