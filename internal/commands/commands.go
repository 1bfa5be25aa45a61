// Package commands implements the bot's administrative command surface. Every
// reply template here is a contract with the history classifier: change one
// and the other must follow, or old transcripts stop being recognized.
package commands

import (
	"context"
	"log/slog"
	"strings"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/nextlevelbuilder/parley/internal/history"
)

// Request carries everything a handler needs about the invoking message.
type Request struct {
	ChannelID   string
	ChannelName string
	Author      string
	IsAdmin     bool
	Arg         string   // raw text after the command word
	Args        []string // word-split Arg
}

type handler struct {
	adminOnly bool
	run       func(ctx context.Context, req Request) []string
}

// Dispatcher routes "!command" messages to their handlers.
type Dispatcher struct {
	store    *history.Store
	loader   *history.Loader
	parser   *shellwords.Parser
	handlers map[string]handler
}

func NewDispatcher(store *history.Store, loader *history.Loader) *Dispatcher {
	d := &Dispatcher{
		store:  store,
		loader: loader,
		parser: shellwords.NewParser(),
	}
	d.handlers = map[string]handler{
		"setprompt":      {adminOnly: true, run: d.setPrompt},
		"getprompt":      {run: d.getPrompt},
		"resetprompt":    {adminOnly: true, run: d.resetPrompt},
		"setai":          {adminOnly: true, run: d.setProvider},
		"getai":          {run: d.getProvider},
		"resetai":        {adminOnly: true, run: d.resetProvider},
		"autorespond":    {adminOnly: true, run: d.toggleAutoRespond},
		"autostatus":     {run: d.autoStatus},
		"thinking":       {adminOnly: true, run: d.thinking},
		"thinkingstatus": {run: d.thinkingStatus},
		"loadhistory":    {adminOnly: true, run: d.loadHistory},
		"cleanhistory":   {adminOnly: true, run: d.cleanHistory},
		"history":        {adminOnly: true, run: d.showHistory},
		"status":         {run: d.status},
		"loadingstatus":  {run: d.loadingStatus},
	}
	return d
}

// Dispatch runs the command in msg if there is one. The second return is
// false when the text is not a known command.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, content string) ([]string, bool) {
	if !strings.HasPrefix(content, "!") {
		return nil, false
	}
	name, rest, _ := strings.Cut(content[1:], " ")
	name = strings.ToLower(name)
	h, ok := d.handlers[name]
	if !ok {
		return nil, false
	}
	if h.adminOnly && !req.IsAdmin {
		slog.Warn("command denied, administrator permission required",
			"command", name, "author", req.Author, "channel", req.ChannelID)
		return nil, true
	}

	req.Arg = strings.TrimSpace(rest)
	args, err := d.parser.Parse(req.Arg)
	if err != nil {
		args = strings.Fields(req.Arg)
	}
	req.Args = args

	slog.Info("command", "name", name, "author", req.Author, "channel", req.ChannelID)
	return h.run(ctx, req), true
}
