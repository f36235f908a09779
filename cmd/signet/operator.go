package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"

	"github.com/block-0x/signet/internal/controller"
	"github.com/block-0x/signet/pkg/wallet"
)

// Operator runs prompt commands against the controller.
type Operator struct {
	app  *App
	ctrl *controller.Controller
	out  io.Writer

	exitCh chan struct{}
}

func NewOperator(app *App, out io.Writer) *Operator {
	if out == nil {
		out = os.Stdout
	}
	return &Operator{
		app:    app,
		ctrl:   app.controller,
		out:    out,
		exitCh: make(chan struct{}),
	}
}

func (o *Operator) Complete(d prompt.Document) []prompt.Suggest {
	return prompt.FilterHasPrefix(o.complete(d), d.GetWordBeforeCursor(), true)
}

func (o *Operator) complete(d prompt.Document) []prompt.Suggest {
	args := strings.Split(d.TextBeforeCursor(), " ")

	if len(args) < 2 {
		return []prompt.Suggest{
			{Text: "connect", Description: "Pick a wallet and connect to it"},
			{Text: "disconnect", Description: "Disconnect and forget the cached wallet"},
			{Text: "network", Description: "Select the chain to switch to"},
			{Text: "switch", Description: "Ask the wallet to switch to the selected chain"},
			{Text: "message", Description: "Set the message to sign"},
			{Text: "sign", Description: "Sign the message with the connected account"},
			{Text: "verify", Description: "Verify the last signature"},
			{Text: "status", Description: "Show the session"},
			{Text: "networks", Description: "List known networks"},
			{Text: "exit", Description: "Exit the application"},
		}
	}

	if len(args) < 3 && args[0] == "network" {
		return o.networkSuggestions()
	}
	return nil
}

func (o *Operator) networkSuggestions() []prompt.Suggest {
	all := o.app.catalog.All()
	suggestions := make([]prompt.Suggest, 0, len(all))
	for _, n := range all {
		suggestions = append(suggestions, prompt.Suggest{
			Text:        fmt.Sprintf("%d", n.ChainID),
			Description: n.ChainName,
		})
	}
	return suggestions
}

func (o *Operator) Execute(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	args := strings.Fields(s)
	ctx := context.Background()

	switch args[0] {
	case "connect":
		o.report(o.ctrl.ConnectWallet(ctx))
	case "disconnect":
		o.report(o.ctrl.Disconnect(ctx))
	case "network":
		if len(args) < 2 {
			fmt.Fprintln(o.out, "Usage: network <chain_id>")
			return
		}
		o.report(o.ctrl.HandleNetwork(args[1]))
	case "switch":
		o.report(o.ctrl.SwitchNetwork(ctx))
	case "message":
		// Keep inner spaces; only the command word is stripped.
		text := strings.TrimSpace(strings.TrimPrefix(s, "message"))
		st := o.ctrl.HandleInput(text)
		if len([]rune(text)) > controller.MaxMessageLength {
			fmt.Fprintf(o.out, "Message truncated to %d characters.\n", controller.MaxMessageLength)
		}
		o.report(st)
	case "sign":
		o.report(o.ctrl.SignMessage(ctx))
	case "verify":
		o.report(o.ctrl.VerifyMessage(ctx))
	case "status":
		renderState(o.out, o.ctrl.State(), o.app.catalog)
	case "networks":
		renderNetworks(o.out, o.app.catalog)
	case "exit":
		o.exit()
	default:
		fmt.Fprintf(o.out, "Unknown command: %s\n", s)
	}
}

// report prints the state after an action.
func (o *Operator) report(st controller.State) {
	renderState(o.out, st, o.app.catalog)
}

func (o *Operator) Wait() <-chan struct{} {
	return o.exitCh
}

func (o *Operator) exit() {
	select {
	case <-o.exitCh:
	default:
		close(o.exitCh)
	}
}

// chooseWallet is the prompt's wallet selection dialog. An empty answer
// cancels the selection.
func chooseWallet(_ context.Context, options []wallet.ProviderOption) (string, error) {
	suggestions := make([]prompt.Suggest, 0, len(options))
	for _, opt := range options {
		suggestions = append(suggestions, prompt.Suggest{Text: opt.ID, Description: opt.Description})
	}

	fmt.Println("Which wallet do you want to connect?")
	choice := strings.TrimSpace(readSelectionArg("wallet", suggestions))
	if choice == "" {
		return "", wallet.ErrSelectionCancelled
	}
	return choice, nil
}

func readSelectionArg(name string, suggestions []prompt.Suggest) string {
	completer := func(d prompt.Document) []prompt.Suggest {
		args := strings.Split(d.TextBeforeCursor(), " ")
		if len(args) > 1 {
			return []prompt.Suggest{}
		}
		return prompt.FilterHasPrefix(suggestions, d.GetWordBeforeCursor(), true)
	}

	promptPrefix := fmt.Sprintf("{%s}>>> ", name)
	return prompt.Input(promptPrefix, completer, getStyleOptions()...)
}

func getStyleOptions() []prompt.Option {
	return []prompt.Option{
		prompt.OptionTitle("Signet"),
		prompt.OptionPrefixTextColor(prompt.Yellow),
		prompt.OptionPreviewSuggestionTextColor(prompt.Cyan),

		prompt.OptionSuggestionTextColor(prompt.White),
		prompt.OptionSuggestionBGColor(prompt.DarkBlue),

		prompt.OptionDescriptionTextColor(prompt.Black),
		prompt.OptionDescriptionBGColor(prompt.Yellow),

		prompt.OptionSelectedSuggestionTextColor(prompt.Black),
		prompt.OptionSelectedSuggestionBGColor(prompt.Yellow),

		prompt.OptionSelectedDescriptionTextColor(prompt.White),
		prompt.OptionSelectedDescriptionBGColor(prompt.DarkBlue),

		prompt.OptionShowCompletionAtStart(),
	}
}
