package app

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/maaaruch/tg-awards-bot/internal/admin"
	"github.com/maaaruch/tg-awards-bot/internal/api"
	"github.com/maaaruch/tg-awards-bot/internal/cache"
	"github.com/maaaruch/tg-awards-bot/internal/metrics"
	"github.com/maaaruch/tg-awards-bot/internal/results"
	"github.com/maaaruch/tg-awards-bot/internal/session"
	"github.com/maaaruch/tg-awards-bot/internal/storage"
	"github.com/maaaruch/tg-awards-bot/internal/voting"
)

// maxMessageLen keeps replies under Telegram's 4096 character limit.
const maxMessageLen = 4000

const helpText = "Welcome to the awards vote!\n\n" +
	"Voters:\n" +
	"/signin Name | email | phone – sign in as a voter\n" +
	"/vote – show categories and cast your votes\n" +
	"/signout – forget your voter and admin sessions\n\n" +
	"Admins:\n" +
	"/admin username password – log in as admin\n" +
	"/catalog – categories, nominees and their ids\n" +
	"/add_category Name – create a category\n" +
	"/set_description categoryID | text – set a category description\n" +
	"/rename_category categoryID | Name – rename a category\n" +
	"/delete_category categoryID – delete a category and its votes\n" +
	"/add_nominee Name – add a nominee to every category\n" +
	"/rename_nominee nomineeID | Name – rename a nominee\n" +
	"/delete_nominee nomineeID – delete a nominee and its votes\n" +
	"/winners – official results"

// BotAPI is the part of *tgbotapi.BotAPI the app uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Options struct {
	// Auth is nil when no admin account is configured.
	Auth     *admin.Authenticator
	LinkMode admin.LinkMode
	// Cache holds the winners snapshot; the state store is used when nil.
	Cache   cache.WinnersCache
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type App struct {
	bot      BotAPI
	store    *storage.Store
	client   *api.Client
	sessions *session.Manager

	voting  *voting.Service
	admin   *admin.Service
	results *results.Service
	auth    *admin.Authenticator

	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(bot BotAPI, store *storage.Store, client *api.Client, opts Options) *App {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	var winnersCache cache.WinnersCache = store
	if opts.Cache != nil {
		winnersCache = opts.Cache
	}

	return &App{
		bot:      bot,
		store:    store,
		client:   client,
		sessions: session.NewManager(),
		voting:   voting.NewService(client, opts.Metrics, opts.Logger),
		admin:    admin.NewService(client, opts.LinkMode, opts.Metrics, opts.Logger),
		results:  &results.Service{Source: client, Cache: winnersCache, Logger: opts.Logger},
		auth:     opts.Auth,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
}

func (a *App) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return

		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				a.handleMessage(ctx, update.Message)
			} else if update.CallbackQuery != nil {
				a.handleCallback(ctx, update.CallbackQuery)
			}
		}
	}
}

// ---------- Updates ----------

func (a *App) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	userID := msg.From.ID
	sess := a.sessions.Get(userID)

	if !msg.IsCommand() {
		kind, target := sess.TakeInput()
		switch {
		case kind == session.InputNone:
			a.reply(msg.Chat.ID, "Send /help to see what I can do.")
		case strings.TrimSpace(msg.Text) == "":
			// keep waiting; only a command cancels the step
			sess.Await(kind, target)
			a.reply(msg.Chat.ID, "The text cannot be empty. Send it again or any command to cancel.")
		default:
			a.handleInputStep(ctx, msg, kind, target)
		}
		return
	}

	// any command cancels a pending input step
	sess.TakeInput()

	cmd := msg.Command()
	switch cmd {
	case "start", "help":
		a.reply(msg.Chat.ID, helpText)
	case "signin":
		a.handleSignIn(ctx, msg)
	case "vote":
		a.handleVote(ctx, msg.Chat.ID, userID)
	case "signout":
		a.handleSignOut(ctx, msg)
	case "admin":
		a.handleAdminLogin(ctx, msg)
	case "winners":
		a.handleWinners(ctx, msg)
	case "catalog":
		a.handleCatalog(ctx, msg)
	case "add_category":
		a.handleAddCategory(ctx, msg)
	case "set_description":
		a.handleCategoryEdit(ctx, msg, session.InputCategoryDescription)
	case "rename_category":
		a.handleCategoryEdit(ctx, msg, session.InputCategoryName)
	case "delete_category":
		a.handleDeleteCategory(ctx, msg)
	case "add_nominee":
		a.handleAddNominee(ctx, msg)
	case "rename_nominee":
		a.handleRenameNominee(ctx, msg)
	case "delete_nominee":
		a.handleDeleteNominee(ctx, msg)
	default:
		cmd = "unknown"
		a.reply(msg.Chat.ID, "Unknown command. Try /help")
	}
	a.metrics.Commands.WithLabelValues(cmd).Inc()
}

func (a *App) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	data := cq.Data

	switch {
	case data == "back:vote":
		a.answer(cq, "")
		a.handleVote(ctx, cq.Message.Chat.ID, cq.From.ID)

	case strings.HasPrefix(data, "pick:"):
		parts := strings.Split(strings.TrimPrefix(data, "pick:"), ":")
		if len(parts) != 2 {
			a.answer(cq, "")
			return
		}
		catID, err1 := strconv.ParseInt(parts[0], 10, 64)
		nomID, err2 := strconv.ParseInt(parts[1], 10, 64)
		if err1 != nil || err2 != nil {
			a.answer(cq, "")
			return
		}
		a.handlePick(cq, catID, nomID)

	case strings.HasPrefix(data, "submit:"):
		catID, err := strconv.ParseInt(strings.TrimPrefix(data, "submit:"), 10, 64)
		if err != nil {
			a.answer(cq, "")
			return
		}
		a.handleSubmit(ctx, cq, catID)

	default:
		a.answer(cq, "")
	}
}

// ---------- Helpers ----------

func (a *App) reply(chatID int64, text string) {
	m := tgbotapi.NewMessage(chatID, truncate(text))
	if _, err := a.bot.Send(m); err != nil {
		a.logger.Warn("send failed", "chat_id", chatID, "error", err)
	}
}

func (a *App) send(c tgbotapi.Chattable) {
	if _, err := a.bot.Send(c); err != nil {
		a.logger.Warn("send failed", "error", err)
	}
}

// answer stops the button spinner and optionally shows text as a toast.
func (a *App) answer(cq *tgbotapi.CallbackQuery, text string) {
	if _, err := a.bot.Request(tgbotapi.NewCallback(cq.ID, text)); err != nil {
		a.logger.Debug("callback answer failed", "error", err)
	}
}

// fail reports err to the user and logs it.
func (a *App) fail(chatID, userID int64, op string, err error) {
	a.logger.Error(op+" failed", "user_id", userID, "error", err)
	a.reply(chatID, "❌ "+api.Message(err))
}

func truncate(text string) string {
	if utf8.RuneCountInString(text) <= maxMessageLen {
		return text
	}
	r := []rune(text)
	return string(r[:maxMessageLen]) + "\n\n(truncated, too much text)"
}

func splitPipeArgs(s string, n int) []string {
	raw := strings.SplitN(s, "|", n)
	out := make([]string, 0, len(raw))
	for _, part := range raw {
		p := strings.TrimSpace(part)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
