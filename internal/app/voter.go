package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/maaaruch/tg-awards-bot/internal/api"
	"github.com/maaaruch/tg-awards-bot/internal/domain"
	"github.com/maaaruch/tg-awards-bot/internal/storage"
	"github.com/maaaruch/tg-awards-bot/internal/voting"
)

func (a *App) handleSignIn(ctx context.Context, msg *tgbotapi.Message) {
	parts := splitPipeArgs(msg.CommandArguments(), 3)
	if len(parts) != 3 {
		a.reply(msg.Chat.ID, "Format: /signin Name | email | phone")
		return
	}
	name, email, phone := parts[0], parts[1], parts[2]

	resp, err := a.client.SignIn(ctx, api.SignInRequest{Name: name, Email: email, Phone: phone})
	if err != nil {
		a.fail(msg.Chat.ID, msg.From.ID, "signin", err)
		return
	}
	if resp.VoterID.IsZero() {
		a.reply(msg.Chat.ID, "❌ The server did not return a voter id.")
		return
	}
	if err := a.store.SaveVoterSession(ctx, msg.From.ID, resp.VoterID, name); err != nil {
		a.fail(msg.Chat.ID, msg.From.ID, "save voter session", err)
		return
	}
	a.sessions.Get(msg.From.ID).SetBallot(nil)

	text := fmt.Sprintf("✅ Signed in as %s.", name)
	if resp.Message != "" {
		text += " " + resp.Message
	}
	a.reply(msg.Chat.ID, text+"\nUse /vote to cast your votes.")
}

func (a *App) handleSignOut(ctx context.Context, msg *tgbotapi.Message) {
	if err := a.store.SignOut(ctx, msg.From.ID); err != nil {
		a.fail(msg.Chat.ID, msg.From.ID, "signout", err)
		return
	}
	a.sessions.Reset(msg.From.ID)
	a.reply(msg.Chat.ID, "👋 Signed out.")
}

// voterSession returns the stored voter for userID, replying when there is none.
func (a *App) voterSession(ctx context.Context, chatID, userID int64) (*storage.VoterSession, bool) {
	vs, err := a.store.GetVoterSession(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			a.reply(chatID, "Please sign in first: /signin Name | email | phone")
		} else {
			a.fail(chatID, userID, "load voter session", err)
		}
		return nil, false
	}
	return vs, true
}

// handleVote reloads the voter's recorded votes and the categories, then
// sends one card per category.
func (a *App) handleVote(ctx context.Context, chatID, userID int64) {
	vs, ok := a.voterSession(ctx, chatID, userID)
	if !ok {
		return
	}

	ballot, err := a.voting.Load(ctx, vs.VoterID)
	if err != nil {
		a.fail(chatID, userID, "load votes", err)
		return
	}
	cats, err := a.client.CategoriesWithNominees(ctx)
	if err != nil {
		a.fail(chatID, userID, "load categories", err)
		return
	}

	sess := a.sessions.Get(userID)
	sess.SetBallot(ballot)
	sess.SetCategories(cats)

	if len(cats) == 0 {
		a.reply(chatID, "No categories available yet.")
		return
	}
	a.reply(chatID, fmt.Sprintf("🗳 %s, pick one nominee per category and press Submit. A submitted vote is final.", vs.Name))
	for _, c := range cats {
		text, kb := voteCard(c, ballot)
		m := tgbotapi.NewMessage(chatID, truncate(text))
		if kb != nil {
			m.ReplyMarkup = *kb
		}
		a.send(m)
	}
}

func (a *App) handlePick(cq *tgbotapi.CallbackQuery, categoryID, nomineeID int64) {
	sess := a.sessions.Get(cq.From.ID)
	ballot := sess.Ballot()
	cat, ok := sess.Category(categoryID)
	if ballot == nil || !ok {
		a.answer(cq, "This list is outdated, send /vote again.")
		return
	}

	if !hasNominee(cat, nomineeID) {
		a.answer(cq, "This list is outdated, send /vote again.")
		return
	}
	if err := ballot.Select(categoryID, nomineeID); err != nil {
		a.answer(cq, "You have already voted in this category.")
		a.redraw(cq, cat, ballot)
		return
	}
	a.answer(cq, "")
	a.redraw(cq, cat, ballot)
}

func (a *App) handleSubmit(ctx context.Context, cq *tgbotapi.CallbackQuery, categoryID int64) {
	chatID := cq.Message.Chat.ID
	sess := a.sessions.Get(cq.From.ID)
	ballot := sess.Ballot()
	cat, ok := sess.Category(categoryID)
	if ballot == nil || !ok {
		a.answer(cq, "This list is outdated, send /vote again.")
		return
	}

	res, err := a.voting.Submit(ctx, ballot, categoryID)
	switch {
	case err == nil:
		a.answer(cq, "")
		a.redraw(cq, cat, ballot)
		msg := res.Message
		if msg == "" {
			msg = "Vote submitted!"
		}
		a.reply(chatID, fmt.Sprintf("✅ %s (%s)", msg, cat.Name))

	case errors.Is(err, voting.ErrNoSelection):
		a.answer(cq, "Please select a nominee first.")

	case api.IsAlreadyVoted(err):
		a.answer(cq, "")
		a.redraw(cq, cat, ballot)
		a.reply(chatID, "ℹ️ "+res.Message)

	case errors.Is(err, voting.ErrAlreadyVoted):
		a.answer(cq, "You have already voted in this category.")
		a.redraw(cq, cat, ballot)

	default:
		a.answer(cq, "")
		a.fail(chatID, cq.From.ID, "submit vote", err)
	}
}

func (a *App) redraw(cq *tgbotapi.CallbackQuery, c domain.CategoryWithNominees, b *voting.Ballot) {
	text, kb := voteCard(c, b)
	chatID, msgID := cq.Message.Chat.ID, cq.Message.MessageID
	if kb == nil {
		a.send(tgbotapi.NewEditMessageText(chatID, msgID, truncate(text)))
		return
	}
	a.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, truncate(text), *kb))
}

// voteCard renders one category. A voted category has no buttons.
func voteCard(c domain.CategoryWithNominees, b *voting.Ballot) (string, *tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	sb.WriteString("🏆 " + c.Name)
	if c.Description != "" {
		sb.WriteString("\n" + c.Description)
	}

	if nomID, ok := b.Voted(c.ID); ok {
		sb.WriteString("\n\n✅ VOTED: " + nomineeName(c.Nominees, nomID))
		return sb.String(), nil
	}
	if len(c.Nominees) == 0 {
		sb.WriteString("\n\nNo nominees yet.")
		return sb.String(), nil
	}

	selected, _ := b.Selected(c.ID)
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(c.Nominees)+2)
	for _, n := range c.Nominees {
		label := "⚪ " + n.Name
		if n.ID == selected {
			label = "🔘 " + n.Name
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("pick:%d:%d", c.ID, n.ID)),
		))
	}
	if b.CanSubmit(c.ID) {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Submit vote", fmt.Sprintf("submit:%d", c.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", "back:vote"),
	))

	sb.WriteString("\n\nPick a nominee:")
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return sb.String(), &kb
}

func nomineeName(list []domain.Nominee, id int64) string {
	for _, n := range list {
		if n.ID == id {
			return n.Name
		}
	}
	return fmt.Sprintf("nominee #%d", id)
}

func hasNominee(cat domain.CategoryWithNominees, nomineeID int64) bool {
	for _, n := range cat.Nominees {
		if n.ID == nomineeID {
			return true
		}
	}
	return false
}
