package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lojasmm/lmbot/internal/logger"
	"github.com/lojasmm/lmbot/internal/search"
	"github.com/lojasmm/lmbot/internal/session"
)

const (
	maxModelsListed   = 10
	maxModelsGreeting = 5
	maxRelatedTopics  = 5
)

func (d *Dispatcher) cmdStart(ctx context.Context, userID string) string {
	d.sessions.Renew(userID)

	if !d.backend.Probe(ctx) {
		return msgSetupGuide
	}

	models := d.backend.ListModels(ctx)
	var b strings.Builder
	b.WriteString("*Welcome!*\n\n*The local model server is up.*\n\n*Available models:*\n")
	if len(models) == 0 {
		b.WriteString("No models loaded\n")
	}
	for _, m := range head(models, maxModelsGreeting) {
		fmt.Fprintf(&b, "• %s\n", m)
	}
	if n := len(models) - maxModelsGreeting; n > 0 {
		fmt.Fprintf(&b, "... and %d more\n", n)
	}
	b.WriteString("\n")
	b.WriteString(msgCommandList)
	b.WriteString("\n\nJust send me a message!")
	return b.String()
}

func (d *Dispatcher) cmdModels(ctx context.Context) string {
	if !d.backend.Probe(ctx) {
		return "*Model server unavailable*\n\nStart the local server and try again."
	}

	models := d.backend.ListModels(ctx)
	if len(models) == 0 {
		return msgNoModels
	}

	var b strings.Builder
	b.WriteString("*Available models:*\n\n")
	for i, m := range head(models, maxModelsListed) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, shorten(m, 50))
	}
	if n := len(models) - maxModelsListed; n > 0 {
		fmt.Fprintf(&b, "\n... and %d more\n", n)
	}
	b.WriteString("\nTip: models with 'instruct' or 'chat' in the name work best for dialogue.")
	return b.String()
}

func (d *Dispatcher) cmdMode(userID string, args []string) string {
	if len(args) == 0 {
		return modeMenu()
	}

	info, err := d.sessions.SetMode(userID, args[0])
	if err != nil {
		return "Invalid mode number. Use 1-4.\nExample: /mode 2"
	}
	return fmt.Sprintf("Mode set to *%s*\n\n%s\nSuggested temperature: %g\n(apply it with /settings temp %g)",
		info.Name, info.Description, info.Temperature, info.Temperature)
}

func (d *Dispatcher) cmdSettings(userID string, args []string) string {
	switch len(args) {
	case 0:
		settings := d.sessions.DefaultSettings()
		if sess, ok := d.sessions.Get(userID); ok {
			settings = sess.Settings
		}
		return settingsText(settings)
	case 1:
		return msgSettingsUsage
	}

	set, err := d.sessions.UpdateSetting(userID, args[0], args[1])
	switch {
	case err == nil && set.Key == session.SettingTemperature:
		return fmt.Sprintf("Temperature set to *%s*\n\nHigher temperature means more creative answers.", set.Value)
	case err == nil:
		return fmt.Sprintf("Max tokens set to *%s*", set.Value)
	case errors.Is(err, session.ErrUnknownSetting):
		return "Unknown setting\n\n" + msgSettingsUsage
	case errors.Is(err, session.ErrInvalidValue):
		return "Please give a number. " + rangeHint(args[0])
	case errors.Is(err, session.ErrOutOfRange):
		return rangeHint(args[0])
	default:
		return msgSettingsUsage
	}
}

func (d *Dispatcher) cmdStatus(ctx context.Context, userID string) string {
	var b strings.Builder
	b.WriteString("*System status*\n\n")

	if d.backend.Probe(ctx) {
		b.WriteString("Model server: available\n")
		models := d.backend.ListModels(ctx)
		if len(models) > 0 {
			fmt.Fprintf(&b, "Models loaded: *%d*\n", len(models))
			fmt.Fprintf(&b, "Current model: %s\n", shorten(models[0], 40))
		} else {
			b.WriteString("No models loaded\n")
		}
	} else {
		b.WriteString("Model server: *unavailable*\n")
	}

	if sess, ok := d.sessions.Get(userID); ok {
		b.WriteString("\n*Your dialogue:*\n")
		fmt.Fprintf(&b, "Messages in history: *%d*\n", len(sess.Messages))
		fmt.Fprintf(&b, "Temperature: *%g*\n", sess.Settings.Temperature)
		fmt.Fprintf(&b, "Max tokens: *%d*\n", sess.Settings.MaxTokens)
		if info, ok := sess.Mode.Info(); ok {
			fmt.Fprintf(&b, "Mode: *%s*\n", info.Name)
		}
	}

	fmt.Fprintf(&b, "\nActive dialogues: *%d*\n", d.sessions.Len())

	if d.stats != nil {
		st, err := d.stats(ctx)
		if err != nil {
			logger.Warn("bot: reading system stats", "err", err)
		} else {
			fmt.Fprintf(&b, "\n*Host:*\nCPU: *%.1f%%*\nMemory: *%.1f%%* used\n", st.CPUPercent, st.MemoryPercent)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (d *Dispatcher) cmdSearch(ctx context.Context, args []string) string {
	if d.search == nil {
		return msgUnknownCommand
	}
	query := strings.Join(args, " ")
	if strings.TrimSpace(query) == "" {
		return "Usage: /search <query>\nExample: /search golang"
	}

	res, err := d.search.Search(ctx, query)
	if err != nil {
		logger.Error("bot: search failed", "query", query, "err", err)
		return "Search is unavailable right now. Try again later."
	}
	return searchText(query, res)
}

func searchText(query string, res *search.Result) string {
	if res == nil || res.Empty() {
		return fmt.Sprintf("Nothing found for \"%s\".", query)
	}

	var b strings.Builder
	if res.Heading != "" {
		fmt.Fprintf(&b, "*%s*\n\n", res.Heading)
	}
	if res.Answer != "" {
		b.WriteString(res.Answer + "\n\n")
	}
	if res.Abstract != "" {
		b.WriteString(res.Abstract + "\n")
		if res.AbstractURL != "" {
			b.WriteString(res.AbstractURL + "\n")
		}
		b.WriteString("\n")
	}
	if len(res.Related) > 0 {
		b.WriteString("*Related:*\n")
		for _, t := range head(res.Related, maxRelatedTopics) {
			fmt.Fprintf(&b, "• %s\n", t.Text)
			if t.URL != "" {
				fmt.Fprintf(&b, "  %s\n", t.URL)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func modeMenu() string {
	var b strings.Builder
	b.WriteString("*Conversation modes*\n\n")
	for _, m := range session.Modes() {
		def := ""
		if m.Mode == session.DefaultMode {
			def = " (default)"
		}
		fmt.Fprintf(&b, "%d. *%s*%s\n   Temperature: %g\n   %s\n\n", m.Mode, m.Name, def, m.Temperature, m.Description)
	}
	b.WriteString("Choose with: /mode [number]\nExample: /mode 2")
	return b.String()
}

func settingsText(s session.Settings) string {
	return fmt.Sprintf("*Current settings*\n\n"+
		"Temperature: %g\n"+
		"Max reply length: %d tokens\n"+
		"System prompt: %s\n\n"+
		"%s\n\n"+
		"*What temperature means:*\n"+
		"• 0.0-0.3: very deterministic\n"+
		"• 0.4-0.7: balanced (recommended)\n"+
		"• 0.8-1.2: creative\n"+
		"• 1.3-2.0: very random, experimental",
		s.Temperature, s.MaxTokens, shorten(s.SystemPrompt, 100), msgSettingsUsage)
}

func rangeHint(key string) string {
	if strings.EqualFold(key, string(session.SettingTokens)) {
		return fmt.Sprintf("Tokens must be between %d and %d.", session.MinMaxTokens, session.MaxMaxTokens)
	}
	return fmt.Sprintf("Temperature must be between %g and %g.", session.MinTemperature, session.MaxTemperature)
}

// shorten truncates s to n characters, ending in "..." when cut.
func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
