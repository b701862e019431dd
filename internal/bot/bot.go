// Package bot wires Telegram commands and callbacks to the search,
// storage, and FX components.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"jobscout_bot/internal/config"
	"jobscout_bot/internal/fx"
	"jobscout_bot/internal/session"
	"jobscout_bot/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot is the Telegram bot that handles user commands and renders the
// job feed.
type Bot struct {
	api      telegramAPI
	store    storage.Store
	searcher session.Searcher
	fxCache  *fx.Cache
	cfg      *config.Config
	log      *slog.Logger

	mu       sync.Mutex
	sessions map[int64]*chatSession
}

// chatSession is the per-chat interactive state: the working result
// set plus the current page.
type chatSession struct {
	sess *session.Session
	page int
}

// New creates a Bot with the given Telegram token and collaborators.
func New(token string, store storage.Store, searcher session.Searcher, fxCache *fx.Cache, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Bot{
		api:      api,
		store:    store,
		searcher: searcher,
		fxCache:  fxCache,
		cfg:      cfg,
		log:      log,
		sessions: make(map[int64]*chatSession),
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) chatSession(chatID int64) *chatSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[chatID]
}

func (b *Bot) setChatSession(chatID int64, cs *chatSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[chatID] = cs
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(ctx, chatID)
	case "help":
		b.handleHelp(chatID)
	case "search":
		b.handleSearch(ctx, chatID, args)
	case "salary":
		b.handleSalary(ctx, chatID, args)
	case "currency":
		b.handleCurrency(ctx, chatID, args)
	case "companies":
		b.handleCompanies(ctx, chatID, args)
	case "favorites":
		b.handleFavorites(ctx, chatID)
	case "favorites_clear":
		b.handleFavoritesClear(ctx, chatID)
	case "save":
		b.handleSave(ctx, chatID, args)
	case "saved":
		b.handleSaved(ctx, chatID)
	case "subs":
		b.handleSubs(ctx, chatID)
	case "mute":
		b.handleMute(ctx, chatID, args)
	case "unmute":
		b.handleUnmute(ctx, chatID, args)
	case "sources":
		b.handleSources(ctx, chatID, args)
	case "region":
		b.handleRegion(ctx, chatID, args)
	case "setcurrency":
		b.handleSetCurrency(ctx, chatID, args)
	case "rates":
		b.handleRates(ctx, chatID)
	case "notifications":
		b.handleNotifications(ctx, chatID)
	case "settings":
		b.handleSettings(ctx, chatID)
	case "export":
		b.handleExport(ctx, chatID)
	case "delete":
		b.handleDelete(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
