package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/maaaruch/tg-awards-bot/internal/admin"
	"github.com/maaaruch/tg-awards-bot/internal/api"
	"github.com/maaaruch/tg-awards-bot/internal/results"
	"github.com/maaaruch/tg-awards-bot/internal/session"
)

func (a *App) handleAdminLogin(ctx context.Context, msg *tgbotapi.Message) {
	// the password should not stay in the chat history
	if _, err := a.bot.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
		a.logger.Debug("delete login message failed", "error", err)
	}

	if a.auth == nil {
		a.reply(msg.Chat.ID, "Admin access is not configured.")
		return
	}
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) != 2 {
		a.reply(msg.Chat.ID, "Format: /admin username password")
		return
	}
	if err := a.auth.Check(fields[0], fields[1]); err != nil {
		a.logger.Warn("admin login rejected", "user_id", msg.From.ID)
		a.reply(msg.Chat.ID, "❌ Invalid credentials.")
		return
	}
	if err := a.store.SetAdmin(ctx, msg.From.ID); err != nil {
		a.fail(msg.Chat.ID, msg.From.ID, "admin login", err)
		return
	}
	a.logger.Info("admin login", "user_id", msg.From.ID)
	a.reply(msg.Chat.ID, "✅ Admin mode on. See /catalog and /winners.")
}

func (a *App) requireAdmin(ctx context.Context, msg *tgbotapi.Message) bool {
	ok, err := a.store.IsAdmin(ctx, msg.From.ID)
	if err != nil {
		a.fail(msg.Chat.ID, msg.From.ID, "admin check", err)
		return false
	}
	if !ok {
		a.reply(msg.Chat.ID, "Admins only. Log in with /admin username password")
	}
	return ok
}

func (a *App) handleWinners(ctx context.Context, msg *tgbotapi.Message) {
	if !a.requireAdmin(ctx, msg) {
		return
	}
	view := a.results.Fetch(ctx)
	if view.Err != nil {
		a.logger.Error("winners refresh failed", "user_id", msg.From.ID, "error", view.Err)
	}
	a.reply(msg.Chat.ID, results.Render(view))
}

func (a *App) handleCatalog(ctx context.Context, msg *tgbotapi.Message) {
	if !a.requireAdmin(ctx, msg) {
		return
	}
	cat, err := a.admin.Load(ctx)
	if err != nil {
		a.fail(msg.Chat.ID, msg.From.ID, "catalog", err)
		return
	}
	a.reply(msg.Chat.ID, renderCatalog(cat))
}

func renderCatalog(cat admin.Catalog) string {
	var sb strings.Builder
	sb.WriteString("📋 Categories\n")
	if len(cat.Categories) == 0 {
		sb.WriteString("No categories yet. Create one with /add_category Name\n")
	}
	for _, c := range cat.Categories {
		sb.WriteString(fmt.Sprintf("\n#%d %s\n", c.ID, c.Name))
		if c.Description != "" {
			sb.WriteString("   " + c.Description + "\n")
		}
		if len(c.Nominees) == 0 {
			sb.WriteString("   (no nominees)\n")
		}
		for _, n := range c.Nominees {
			sb.WriteString(fmt.Sprintf("   • #%d %s\n", n.ID, n.Name))
		}
	}

	sb.WriteString(fmt.Sprintf("\n👥 Nominees (%d)\n", len(cat.Nominees)))
	for _, n := range cat.Nominees {
		sb.WriteString(fmt.Sprintf("#%d %s\n", n.ID, n.Name))
	}
	return sb.String()
}

func (a *App) handleAddCategory(ctx context.Context, msg *tgbotapi.Message) {
	if !a.requireAdmin(ctx, msg) {
		return
	}
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		a.reply(msg.Chat.ID, "Format: /add_category Name")
		return
	}

	c, report, err := a.admin.AddCategory(ctx, name)
	if err != nil && c.ID == 0 {
		a.fail(msg.Chat.ID, msg.From.ID, "add category", err)
		return
	}
	text := fmt.Sprintf("✅ Category #%d %q created.", c.ID, c.Name)
	a.reply(msg.Chat.ID, text+linkSummary(report, err, "nominees"))
}

func (a *App) handleAddNominee(ctx context.Context, msg *tgbotapi.Message) {
	if !a.requireAdmin(ctx, msg) {
		return
	}
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		a.reply(msg.Chat.ID, "Format: /add_nominee Name")
		return
	}

	n, report, err := a.admin.AddNominee(ctx, name)
	switch {
	case errors.Is(err, admin.ErrNoCategories):
		a.reply(msg.Chat.ID, "Please create a category first: /add_category Name")
		return
	case n.ID == 0 && errors.Is(err, admin.ErrNomineeExists):
		a.reply(msg.Chat.ID, fmt.Sprintf("❌ Nominee %q already exists.", name))
		return
	case err != nil && n.ID == 0:
		a.fail(msg.Chat.ID, msg.From.ID, "add nominee", err)
		return
	}
	text := fmt.Sprintf("✅ Nominee #%d %q added.", n.ID, n.Name)
	a.reply(msg.Chat.ID, text+linkSummary(report, err, "categories"))
}

// linkSummary describes a link batch; the created entity exists either way.
func linkSummary(r admin.LinkReport, err error, what string) string {
	if r.Requested == 0 {
		if err != nil {
			return fmt.Sprintf("\n⚠️ No %s were linked: %s", what, api.Message(err))
		}
		return ""
	}
	if err == nil || r.Failed == 0 {
		return fmt.Sprintf(" Linked to %d %s.", r.Requested, what)
	}
	return fmt.Sprintf("\n⚠️ Linked to %d of %d %s; %d links failed. Nothing was rolled back.",
		r.Requested-r.Failed, r.Requested, what, r.Failed)
}

// handleCategoryEdit serves /set_description and /rename_category. Without
// the text part the bot asks for it in the next message.
func (a *App) handleCategoryEdit(ctx context.Context, msg *tgbotapi.Message, kind session.InputKind) {
	if !a.requireAdmin(ctx, msg) {
		return
	}
	usage := "Format: /rename_category categoryID | Name"
	if kind == session.InputCategoryDescription {
		usage = "Format: /set_description categoryID | text"
	}

	parts := splitPipeArgs(msg.CommandArguments(), 2)
	if len(parts) == 0 {
		a.reply(msg.Chat.ID, usage)
		return
	}
	id, ok := parseID(parts[0])
	if !ok {
		a.reply(msg.Chat.ID, usage)
		return
	}
	if len(parts) == 1 {
		a.sessions.Get(msg.From.ID).Await(kind, id)
		if kind == session.InputCategoryDescription {
			a.reply(msg.Chat.ID, fmt.Sprintf("Send the new description for category #%d.", id))
		} else {
			a.reply(msg.Chat.ID, fmt.Sprintf("Send the new name for category #%d.", id))
		}
		return
	}
	a.applyInput(ctx, msg.Chat.ID, msg.From.ID, kind, id, parts[1])
}

func (a *App) handleRenameNominee(ctx context.Context, msg *tgbotapi.Message) {
	if !a.requireAdmin(ctx, msg) {
		return
	}
	parts := splitPipeArgs(msg.CommandArguments(), 2)
	id, ok := int64(0), false
	if len(parts) > 0 {
		id, ok = parseID(parts[0])
	}
	if !ok {
		a.reply(msg.Chat.ID, "Format: /rename_nominee nomineeID | Name")
		return
	}
	if len(parts) == 1 {
		a.sessions.Get(msg.From.ID).Await(session.InputNomineeName, id)
		a.reply(msg.Chat.ID, fmt.Sprintf("Send the new name for nominee #%d.", id))
		return
	}
	a.applyInput(ctx, msg.Chat.ID, msg.From.ID, session.InputNomineeName, id, parts[1])
}

// handleInputStep finishes an edit whose text arrives as a plain message.
func (a *App) handleInputStep(ctx context.Context, msg *tgbotapi.Message, kind session.InputKind, targetID int64) {
	if !a.requireAdmin(ctx, msg) {
		return
	}
	a.applyInput(ctx, msg.Chat.ID, msg.From.ID, kind, targetID, msg.Text)
}

func (a *App) applyInput(ctx context.Context, chatID, userID int64, kind session.InputKind, id int64, text string) {
	var (
		err  error
		done string
	)
	switch kind {
	case session.InputCategoryDescription:
		err = a.admin.SetDescription(ctx, id, text)
		done = fmt.Sprintf("✅ Description of category #%d updated.", id)
	case session.InputCategoryName:
		err = a.admin.RenameCategory(ctx, id, text)
		done = fmt.Sprintf("✅ Category #%d renamed.", id)
	case session.InputNomineeName:
		err = a.admin.RenameNominee(ctx, id, text)
		done = fmt.Sprintf("✅ Nominee #%d renamed.", id)
	default:
		return
	}

	switch {
	case err == nil:
		a.reply(chatID, done)
	case errors.Is(err, admin.ErrEmptyName):
		a.reply(chatID, "❌ The name cannot be empty.")
	case errors.Is(err, admin.ErrNomineeExists):
		a.reply(chatID, "❌ A nominee with that name already exists.")
	default:
		a.fail(chatID, userID, "edit", err)
	}
}

func (a *App) handleDeleteCategory(ctx context.Context, msg *tgbotapi.Message) {
	if !a.requireAdmin(ctx, msg) {
		return
	}
	id, ok := parseID(msg.CommandArguments())
	if !ok {
		a.reply(msg.Chat.ID, "Format: /delete_category categoryID")
		return
	}
	if err := a.admin.DeleteCategory(ctx, id); err != nil {
		a.fail(msg.Chat.ID, msg.From.ID, "delete category", err)
		return
	}
	a.reply(msg.Chat.ID, fmt.Sprintf("🗑 Category #%d deleted with its nominations and votes.", id))
}

func (a *App) handleDeleteNominee(ctx context.Context, msg *tgbotapi.Message) {
	if !a.requireAdmin(ctx, msg) {
		return
	}
	id, ok := parseID(msg.CommandArguments())
	if !ok {
		a.reply(msg.Chat.ID, "Format: /delete_nominee nomineeID")
		return
	}
	if err := a.admin.DeleteNominee(ctx, id); err != nil {
		a.fail(msg.Chat.ID, msg.From.ID, "delete nominee", err)
		return
	}
	a.reply(msg.Chat.ID, fmt.Sprintf("🗑 Nominee #%d deleted with its nominations and votes.", id))
}
