package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sandevgo/lilybot/internal/config"
	"github.com/sandevgo/lilybot/internal/core"
	"github.com/sandevgo/lilybot/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const baseContextKey = "base_context"

type Handler interface {
	Handle(ctx context.Context, sessionID, text string, req core.Requester) (string, error)
}

type Bot struct {
	bot      *tele.Bot
	handler  Handler
	sender   *sender
	masterID int64
}

func NewBot(ctx context.Context, cfg *config.TelegramConfig, handler Handler) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.FromCtx(ctx).Error().Err(err).Msg("telegram handler error")
		},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:      b,
		handler:  handler,
		sender:   newSender(b),
		masterID: cfg.MasterID,
	}

	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	b.Handle(tele.OnText, bot.handleMessage)

	return bot, nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("bot", b.bot.Me.Username).Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

func (b *Bot) handleMessage(c tele.Context) error {
	base := c.Get(baseContextKey).(context.Context)
	if c.Sender() == nil || c.Chat() == nil {
		return nil
	}

	text, ok := addressedText(c.Chat(), c.Message(), b.bot.Me)
	if !ok {
		return nil
	}

	req := requesterFrom(c.Sender(), b.masterID)
	ctx := log.WithFields(base, "chat", strconv.FormatInt(c.Chat().ID, 10), "user", req.ID)
	logger := log.FromCtx(ctx)

	_ = c.Notify(tele.Typing)

	reply, err := b.handler.Handle(ctx, sessionKey(c.Chat()), text, req)
	if err != nil {
		logger.Error().Err(err).Msg("message handling failed")
		return c.Send("Something went wrong on my side, my memory of this chat is unavailable.")
	}

	return b.sender.sendMarkdown(ctx, c.Chat(), reply, false)
}

func sessionKey(chat *tele.Chat) string {
	return fmt.Sprintf("telegram-%d", chat.ID)
}

func requesterFrom(u *tele.User, masterID int64) core.Requester {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return core.Requester{
		ID:       strconv.FormatInt(u.ID, 10),
		Name:     name,
		IsMaster: u.ID == masterID,
	}
}

// addressedText returns the text meant for the bot. In groups the bot only
// answers when mentioned or replied to; the mention itself is stripped.
func addressedText(chat *tele.Chat, msg *tele.Message, me *tele.User) (string, bool) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return "", false
	}
	if chat.Type == tele.ChatPrivate || strings.HasPrefix(text, "/") {
		return text, true
	}

	if me == nil {
		return "", false
	}
	mention := "@" + me.Username
	if me.Username != "" && strings.Contains(text, mention) {
		return strings.TrimSpace(strings.ReplaceAll(text, mention, "")), true
	}
	if msg.ReplyTo != nil && msg.ReplyTo.Sender != nil && msg.ReplyTo.Sender.ID == me.ID {
		return text, true
	}
	return "", false
}
