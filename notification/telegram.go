// Package notification provides implementations for various notification services
package notification

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/raykavin/pumpwatch/core"
	str2duration "github.com/xhit/go-str2duration/v2"
	tb "gopkg.in/tucnak/telebot.v2"
)

// Constants and regex patterns
const (
	pollingTimeout = 10 * time.Second
)

var (
	thresholdRegexp = regexp.MustCompile(`/threshold\s+(?P<value>\d+(?:\.\d+)?)`)
	windowRegexp    = regexp.MustCompile(`/window\s+(?P<value>\S+)`)
	pairsRegexp     = regexp.MustCompile(`/pairs\s+(?P<list>.+)`)
	muteRegexp      = regexp.MustCompile(`/(?P<action>mute|unmute)\s+(?P<exchange>\w+)`)
)

// Telegram implements the core.NotifierWithStart interface
type Telegram struct {
	settings    *core.Settings
	subscribers core.SubscriberRegistry
	defaultMenu *tb.ReplyMarkup
	client      *tb.Bot
	log         core.Logger
}

// Option is a function that configures a telegram instance
type Option func(telegram *Telegram)

// NewTelegram creates and initializes a new Telegram service
func NewTelegram(subscribers core.SubscriberRegistry, settings *core.Settings, log core.Logger, options ...Option) (
	core.NotifierWithStart,
	error,
) {
	menu := &tb.ReplyMarkup{ResizeReplyKeyboard: true}
	poller := &tb.LongPoller{Timeout: pollingTimeout}

	client, err := initializeBotClient(settings, poller)
	if err != nil {
		return nil, err
	}

	setupKeyboard(menu)
	if err := setupCommands(client); err != nil {
		return nil, fmt.Errorf("failed to set commands: %w", err)
	}

	bot := &Telegram{
		subscribers: subscribers,
		client:      client,
		settings:    settings,
		defaultMenu: menu,
		log:         log,
	}

	// Apply custom options if provided
	for _, option := range options {
		option(bot)
	}

	registerHandlers(client, bot)

	return bot, nil
}

// initializeBotClient creates and configures the Telegram bot client
func initializeBotClient(settings *core.Settings, poller tb.Poller) (*tb.Bot, error) {
	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     settings.Telegram.Token,
		Poller:    poller,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return client, nil
}

// setupKeyboard configures the reply keyboard layout
func setupKeyboard(menu *tb.ReplyMarkup) {
	// Define keyboard buttons
	var (
		startBtn  = menu.Text("/start")
		stopBtn   = menu.Text("/stop")
		statusBtn = menu.Text("/status")
		helpBtn   = menu.Text("/help")
	)

	// Arrange keyboard layout
	menu.Reply(
		menu.Row(startBtn, stopBtn),
		menu.Row(statusBtn, helpBtn),
	)
}

// setupCommands configures available bot commands
func setupCommands(client *tb.Bot) error {
	return client.SetCommands([]tb.Command{
		{Text: "/help", Description: "Display help instructions"},
		{Text: "/start", Description: "Subscribe to pump alerts"},
		{Text: "/stop", Description: "Stop receiving pump alerts"},
		{Text: "/status", Description: "Show your current settings"},
		{Text: "/threshold", Description: "Set the pump threshold percent"},
		{Text: "/window", Description: "Set the detection window, e.g. 150s or 5m"},
		{Text: "/pairs", Description: "Restrict alerts to pairs, or 'all'"},
		{Text: "/mute", Description: "Mute one exchange"},
		{Text: "/unmute", Description: "Unmute one exchange"},
	})
}

// registerHandlers registers all command handlers
func registerHandlers(client *tb.Bot, bot *Telegram) {
	client.Handle("/help", bot.HelpHandle)
	client.Handle("/start", bot.StartHandle)
	client.Handle("/stop", bot.StopHandle)
	client.Handle("/status", bot.StatusHandle)
	client.Handle("/threshold", bot.ThresholdHandle)
	client.Handle("/window", bot.WindowHandle)
	client.Handle("/pairs", bot.PairsHandle)
	client.Handle("/mute", bot.MuteHandle)
	client.Handle("/unmute", bot.MuteHandle)
}

// Start begins the Telegram bot receive loop
func (t *Telegram) Start() {
	go t.client.Start()
	t.log.Info("telegram notifier started")
}

// Stop halts the receive loop
func (t *Telegram) Stop() {
	t.client.Stop()
}

// Send delivers alert text to a chat. Blocked and deleted recipients are
// reported as permanent failures so the dispatcher can retire them.
func (t *Telegram) Send(_ context.Context, destination int64, text string) error {
	_, err := t.client.Send(&tb.User{ID: destination}, text)
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, tb.ErrBlockedByUser):
		return fmt.Errorf("%w: chat %d", core.ErrRecipientBlocked, destination)
	case errors.Is(err, tb.ErrChatNotFound):
		return fmt.Errorf("%w: chat %d", core.ErrRecipientNotFound, destination)
	default:
		return fmt.Errorf("telegram send to %d: %w", destination, err)
	}
}

// Command handlers
// ---------------

// HelpHandle displays available commands
func (t *Telegram) HelpHandle(m *tb.Message) {
	commands, err := t.client.GetCommands()
	if err != nil {
		t.log.WithError(err).Error("failed to get commands")
		return
	}

	lines := make([]string, 0, len(commands))
	for _, command := range commands {
		lines = append(lines, fmt.Sprintf("/%s - %s", command.Text, command.Description))
	}

	t.sendMessage(m.Sender, strings.Join(lines, "\n"))
}

// StartHandle activates the sender's subscription, creating one with the
// default parameters on first contact
func (t *Telegram) StartHandle(m *tb.Message) {
	ctx := context.Background()
	id := m.Sender.ID

	if _, err := t.subscribers.Config(ctx, id); err != nil {
		if !errors.Is(err, core.ErrSubscriberNotFound) {
			t.log.WithError(err).Error("failed to load subscriber config")
			return
		}

		config := core.SubscriberConfig{
			ID:               id,
			ThresholdPercent: t.settings.DefaultThreshold,
			WindowSize:       t.settings.DefaultWindowSize,
			State:            core.StateActive,
		}
		if err := t.subscribers.CreateConfig(ctx, config); err != nil {
			t.log.WithError(err).Error("failed to create subscriber config")
			return
		}

		t.sendMessage(m.Sender, fmt.Sprintf(
			"Subscribed. Alerting on pumps of `%.2f%%` within `%s` on every pair.",
			config.ThresholdPercent, config.WindowSize,
		), t.defaultMenu)
		return
	}

	if err := t.subscribers.SetState(ctx, id, core.StateActive); err != nil {
		t.log.WithError(err).Error("failed to activate subscriber")
		return
	}

	t.sendMessage(m.Sender, "Alerts resumed.", t.defaultMenu)
}

// StopHandle deactivates the sender's subscription
func (t *Telegram) StopHandle(m *tb.Message) {
	err := t.subscribers.SetState(context.Background(), m.Sender.ID, core.StateStopped)
	if err != nil {
		if errors.Is(err, core.ErrSubscriberNotFound) {
			t.sendMessage(m.Sender, "You are not subscribed. Use /start first.")
			return
		}
		t.log.WithError(err).Error("failed to stop subscriber")
		return
	}

	t.sendMessage(m.Sender, "Alerts stopped. Use /start to resume.", t.defaultMenu)
}

// StatusHandle shows the sender's current configuration
func (t *Telegram) StatusHandle(m *tb.Message) {
	config, err := t.subscribers.Config(context.Background(), m.Sender.ID)
	if err != nil {
		if errors.Is(err, core.ErrSubscriberNotFound) {
			t.sendMessage(m.Sender, "You are not subscribed. Use /start first.")
			return
		}
		t.log.WithError(err).Error("failed to load subscriber config")
		return
	}

	t.sendMessage(m.Sender, formatStatusMessage(config))
}

// ThresholdHandle updates the sender's pump threshold
func (t *Telegram) ThresholdHandle(m *tb.Message) {
	match := thresholdRegexp.FindStringSubmatch(m.Text)
	if len(match) == 0 {
		t.sendMessage(m.Sender, "Invalid command.\nExample of usage:\n`/threshold 5`")
		return
	}

	value, err := strconv.ParseFloat(extractCommandParams(thresholdRegexp, match)["value"], 64)
	if err != nil {
		t.sendMessage(m.Sender, "Invalid threshold value.")
		return
	}

	t.updateConfig(m.Sender, func(config *core.SubscriberConfig) {
		config.ThresholdPercent = value
	}, fmt.Sprintf("Threshold set to `%.2f%%`.", value))
}

// WindowHandle updates the sender's detection window
func (t *Telegram) WindowHandle(m *tb.Message) {
	match := windowRegexp.FindStringSubmatch(m.Text)
	if len(match) == 0 {
		t.sendMessage(m.Sender, "Invalid command.\nExamples of usage:\n`/window 150s`\n\n`/window 5m`")
		return
	}

	window, err := str2duration.ParseDuration(extractCommandParams(windowRegexp, match)["value"])
	if err != nil {
		t.sendMessage(m.Sender, "Invalid window duration. Try `150s` or `5m`.")
		return
	}

	t.updateConfig(m.Sender, func(config *core.SubscriberConfig) {
		config.WindowSize = window
	}, fmt.Sprintf("Window set to `%s`.", window))
}

// PairsHandle restricts alerts to a pair list, or clears the restriction
func (t *Telegram) PairsHandle(m *tb.Message) {
	match := pairsRegexp.FindStringSubmatch(m.Text)
	if len(match) == 0 {
		t.sendMessage(m.Sender, "Invalid command.\nExamples of usage:\n`/pairs BTCUSDT ETHUSDT`\n\n`/pairs all`")
		return
	}

	raw := strings.Fields(extractCommandParams(pairsRegexp, match)["list"])
	pairs := make([]string, 0, len(raw))
	for _, pair := range raw {
		pairs = append(pairs, strings.ToUpper(strings.TrimSpace(pair)))
	}

	reply := fmt.Sprintf("Alerting on `%s` only.", strings.Join(pairs, "`, `"))
	if len(pairs) == 1 && pairs[0] == "ALL" {
		pairs = nil
		reply = "Alerting on every pair."
	}

	t.updateConfig(m.Sender, func(config *core.SubscriberConfig) {
		config.SelectedPairs = pairs
	}, reply)
}

// MuteHandle mutes or unmutes one exchange for the sender
func (t *Telegram) MuteHandle(m *tb.Message) {
	match := muteRegexp.FindStringSubmatch(m.Text)
	if len(match) == 0 {
		t.sendMessage(m.Sender, "Invalid command.\nExamples of usage:\n`/mute Bybit`\n\n`/unmute Bybit`")
		return
	}

	command := extractCommandParams(muteRegexp, match)
	platform, ok := parsePlatform(command["exchange"])
	if !ok {
		t.sendMessage(m.Sender, "Unknown exchange. Use Binance, Bybit or Coinbase.")
		return
	}

	mute := command["action"] == "mute"
	reply := fmt.Sprintf("%s muted.", platform)
	if !mute {
		reply = fmt.Sprintf("%s unmuted.", platform)
	}

	t.updateConfig(m.Sender, func(config *core.SubscriberConfig) {
		stopped := make([]core.Platform, 0, len(config.StoppedExchanges))
		for _, exchange := range config.StoppedExchanges {
			if exchange != platform {
				stopped = append(stopped, exchange)
			}
		}
		if mute {
			stopped = append(stopped, platform)
		}
		config.StoppedExchanges = stopped
	}, reply)
}

// Helper methods
// -------------

// updateConfig applies mutate to the sender's stored configuration and
// confirms with reply on success
func (t *Telegram) updateConfig(sender *tb.User, mutate func(*core.SubscriberConfig), reply string) {
	ctx := context.Background()

	config, err := t.subscribers.Config(ctx, sender.ID)
	if err != nil {
		if errors.Is(err, core.ErrSubscriberNotFound) {
			t.sendMessage(sender, "You are not subscribed. Use /start first.")
			return
		}
		t.log.WithError(err).Error("failed to load subscriber config")
		return
	}

	mutate(&config)

	if err := t.subscribers.CreateConfig(ctx, config); err != nil {
		if errors.Is(err, core.ErrInvalidThreshold) || errors.Is(err, core.ErrInvalidWindowSize) {
			t.sendMessage(sender, fmt.Sprintf("Rejected: %s.", err))
			return
		}
		t.log.WithError(err).Error("failed to update subscriber config")
		return
	}

	t.sendMessage(sender, reply)
}

// sendMessage sends a message to a specific user
func (t *Telegram) sendMessage(to *tb.User, text string, options ...any) {
	_, err := t.client.Send(to, text, options...)
	if err != nil {
		t.log.WithError(err).Error("failed to send message")
	}
}

// formatStatusMessage creates a formatted configuration summary
func formatStatusMessage(config core.SubscriberConfig) string {
	var sb strings.Builder
	sb.WriteString("*SETTINGS*\n")
	fmt.Fprintf(&sb, "State: `%s`\n", config.State)
	fmt.Fprintf(&sb, "Threshold: `%.2f%%`\n", config.ThresholdPercent)
	fmt.Fprintf(&sb, "Window: `%s`\n", config.WindowSize)

	if len(config.SelectedPairs) == 0 {
		sb.WriteString("Pairs: `all`\n")
	} else {
		fmt.Fprintf(&sb, "Pairs: `%s`\n", strings.Join(config.SelectedPairs, "`, `"))
	}

	if len(config.StoppedExchanges) > 0 {
		muted := make([]string, 0, len(config.StoppedExchanges))
		for _, platform := range config.StoppedExchanges {
			muted = append(muted, string(platform))
		}
		fmt.Fprintf(&sb, "Muted: `%s`\n", strings.Join(muted, "`, `"))
	}

	return sb.String()
}

// parsePlatform resolves a user-typed exchange name
func parsePlatform(name string) (core.Platform, bool) {
	switch strings.ToLower(name) {
	case "binance":
		return core.PlatformBinance, true
	case "bybit":
		return core.PlatformBybit, true
	case "coinbase":
		return core.PlatformCoinbase, true
	default:
		return "", false
	}
}

// Helper function to extract named groups from regex matches
func extractCommandParams(regex *regexp.Regexp, match []string) map[string]string {
	command := make(map[string]string)
	for i, name := range regex.SubexpNames() {
		if i != 0 && name != "" {
			command[name] = match[i]
		}
	}
	return command
}
