package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/c-bata/go-prompt"
	"github.com/oklog/run"
	"golang.org/x/term"

	"github.com/block-0x/signet/internal/api"
	"github.com/block-0x/signet/internal/controller"
	"github.com/block-0x/signet/pkg/log"
	"github.com/block-0x/signet/pkg/wallet"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %s\n", err.Error())
		os.Exit(1)
	}
	logger := log.NewZapLogger(cfg.Log).WithName("signet")

	command := "prompt"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "prompt":
		runPrompt(cfg, logger)
	case "serve":
		runServer(cfg, logger)
	case "bridge":
		runBridge(cfg, logger)
	default:
		logger.Fatal("unknown command", "name", command)
	}
}

func runPrompt(cfg *Config, logger log.Logger) {
	app, err := NewApp(cfg, logger, chooseWallet)
	if err != nil {
		logger.Fatal("failed to initialise app", "error", err)
	}
	defer app.Close()

	ctx := log.SetContextLogger(context.Background(), logger)
	if err := app.FollowEvents(ctx); err != nil {
		logger.Warn("not following session events", "error", err)
	}

	st := app.controller.Start(ctx)
	if st.Phase == controller.PhaseConnected {
		fmt.Printf("Restored session for %s.\n", st.Account)
	}

	operator := NewOperator(app, os.Stdout)

	initialState, _ := term.GetState(int(os.Stdin.Fd()))
	handleExit := func() {
		if initialState != nil {
			_ = term.Restore(int(os.Stdin.Fd()), initialState)
		}
		_ = exec.Command("stty", "sane").Run()
	}

	options := append(getStyleOptions(),
		prompt.OptionPrefix(">>> "),
		prompt.OptionAddKeyBind(prompt.KeyBind{
			Key: prompt.ControlC,
			Fn: func(*prompt.Buffer) {
				fmt.Println("Exiting Signet.")
				handleExit()
				app.Close()
				os.Exit(0)
			},
		}),
		prompt.OptionAddKeyBind(prompt.KeyBind{
			Key: prompt.ControlD,
			Fn:  func(*prompt.Buffer) {},
		}),
	)
	p := prompt.New(operator.Execute, operator.Complete, options...)

	promptExitCh := make(chan struct{})
	go func() {
		p.Run()
		close(promptExitCh)
	}()

	select {
	case <-operator.Wait():
	case <-promptExitCh:
	}
	handleExit()
	fmt.Println("Exiting Signet.")
}

func runServer(cfg *Config, logger log.Logger) {
	app, err := NewApp(cfg, logger, wallet.FirstOption)
	if err != nil {
		logger.Fatal("failed to initialise app", "error", err)
	}
	defer app.Close()

	ctx := log.SetContextLogger(context.Background(), logger)
	if err := app.FollowEvents(ctx); err != nil {
		logger.Warn("not following session events", "error", err)
	}
	app.controller.Start(ctx)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(app.controller, logger, app.registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("HTTP API available", "listenAddr", cfg.HTTPAddr)
	if err := serveUntilSignal(logger, server, nil); err != nil {
		logger.Error("HTTP server failure", "error", err)
	}
}

// runBridge serves the built-in wallet to remote clients over websocket.
func runBridge(cfg *Config, logger log.Logger) {
	signers, err := loadSigners(cfg.walletKeys())
	if err != nil {
		logger.Fatal("failed to load wallet keys", "error", err)
	}
	w, err := wallet.NewLocalWallet(cfg.WalletChainID, signers)
	if err != nil {
		logger.Fatal("failed to create wallet", "error", err)
	}
	defer w.Close()

	mux := http.NewServeMux()
	mux.Handle("/ws", wallet.NewBridge(w, logger))

	server := &http.Server{
		Addr:              cfg.BridgeAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("wallet bridge available", "listenAddr", cfg.BridgeAddr, "endpoint", "/ws", "accounts", w.Accounts())
	// Connected clients are told the wallet went away before the server stops.
	if err := serveUntilSignal(logger, server, w.EmitDisconnect); err != nil {
		logger.Error("bridge server failure", "error", err)
	}
}

// serveUntilSignal runs server until it fails or SIGINT/SIGTERM arrives.
// beforeShutdown, when set, runs before the server is shut down.
func serveUntilSignal(logger log.Logger, server *http.Server, beforeShutdown func()) error {
	g := &run.Group{}

	g.Add(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		if beforeShutdown != nil {
			beforeShutdown()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("failed to shut down server", "error", err)
		}
	})

	stop := make(chan os.Signal, 1)
	done := make(chan struct{})
	g.Add(func() error {
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		select {
		case sig := <-stop:
			logger.Info("received signal, shutting down", "signal", sig.String())
		case <-done:
		}
		return nil
	}, func(error) {
		signal.Stop(stop)
		close(done)
	})

	err := g.Run()
	logger.Info("shutdown complete")
	return err
}
