package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"jobscout_bot/internal/model"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Send(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Debug("ack callback", "error", err)
	}
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	if !b.cfg.IsUserAllowed(cb.From.ID) {
		return
	}

	action, rest, _ := strings.Cut(cb.Data, ":")
	b.log.Debug("callback", "action", action, "args", rest, "chat_id", chatID)

	switch action {
	case "page":
		page, err := parseIDArg(rest)
		if err != nil || page < 1 {
			return
		}
		b.showPage(ctx, chatID, page)
	case "fav":
		b.callbackFavorite(ctx, chatID, rest)
	case "mute":
		b.callbackMute(ctx, chatID, rest)
	case "sort":
		b.callbackSort(ctx, chatID, rest)
	case "dg":
		b.callbackDigest(ctx, chatID, rest)
	}
}

// filteredRow resolves a card button index against the current filtered
// view of the session.
func (b *Bot) filteredRow(ctx context.Context, chatID int64, arg string) (model.JobRecord, bool) {
	idx, err := parseIDArg(arg)
	if err != nil || idx < 0 {
		return model.JobRecord{}, false
	}
	cs := b.chatSession(chatID)
	if cs == nil {
		return model.JobRecord{}, false
	}
	u, err := b.store.GetUser(ctx, chatID)
	if err != nil {
		b.log.Error("load user", "chat_id", chatID, "error", err)
		return model.JobRecord{}, false
	}
	rows := cs.sess.Filtered(u.MutedSet())
	if idx >= len(rows) {
		return model.JobRecord{}, false
	}
	return rows[idx], true
}

func (b *Bot) callbackFavorite(ctx context.Context, chatID int64, arg string) {
	job, ok := b.filteredRow(ctx, chatID, arg)
	if !ok {
		b.reply(chatID, "That job is no longer in the result set.")
		return
	}
	added, err := b.store.SaveFavorite(ctx, chatID, job)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if added {
		b.reply(chatID, fmt.Sprintf("Added to favorites: %s — %s", job.Title, job.Company))
	} else {
		b.reply(chatID, "Already in favorites.")
	}
}

func (b *Bot) callbackMute(ctx context.Context, chatID int64, arg string) {
	job, ok := b.filteredRow(ctx, chatID, arg)
	if !ok {
		b.reply(chatID, "That job is no longer in the result set.")
		return
	}
	if job.Company == "" || job.Company == "—" {
		b.reply(chatID, "This job has no company to mute.")
		return
	}
	_, err := b.store.MutateUser(ctx, chatID, func(u *model.UserRecord) {
		if !u.IsMuted(job.Company) {
			u.MutedCompanies = append(u.MutedCompanies, job.Company)
		}
	})
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("%q muted. Unmute with /unmute %s", job.Company, job.Company))
	if cs := b.chatSession(chatID); cs != nil {
		b.showPage(ctx, chatID, cs.page)
	}
}

func (b *Bot) callbackSort(ctx context.Context, chatID int64, arg string) {
	cs := b.chatSession(chatID)
	if cs == nil {
		b.reply(chatID, "No active search. Use /search first.")
		return
	}
	switch arg {
	case "salary":
		cs.sess.SortBySalary()
		b.reply(chatID, "Sorted by salary.")
	case "date":
		cs.sess.SortByDate()
		b.reply(chatID, "Sorted by date.")
	default:
		return
	}
	b.showPage(ctx, chatID, 1)
}

func (b *Bot) callbackDigest(ctx context.Context, chatID int64, arg string) {
	parts := strings.Split(arg, ":")
	if len(parts) < 2 {
		return
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil || idx < 0 {
		return
	}

	switch parts[0] {
	case "freq":
		if len(parts) != 3 {
			return
		}
		freq := model.Frequency(parts[2])
		switch freq {
		case model.FreqOff, model.FreqDaily, model.FreqEvery3d, model.FreqWeekly:
		default:
			return
		}
		err = b.store.UpdateSavedSearch(ctx, chatID, idx, func(ss *model.SavedSearch) {
			ss.Subscription.Freq = freq
			if freq != model.FreqOff && ss.Subscription.LastSentAt == 0 {
				ss.Subscription.Paused = false
			}
		})
		if err != nil {
			b.reply(chatID, fmt.Sprintf("Error: %v", err))
			return
		}
		if freq == model.FreqOff {
			b.reply(chatID, "Digest turned off for this search.")
		} else {
			b.reply(chatID, fmt.Sprintf("Digest frequency set to %s.", freq))
		}
	case "toggle":
		var paused bool
		err = b.store.UpdateSavedSearch(ctx, chatID, idx, func(ss *model.SavedSearch) {
			ss.Subscription.Paused = !ss.Subscription.Paused
			paused = ss.Subscription.Paused
		})
		if err != nil {
			b.reply(chatID, fmt.Sprintf("Error: %v", err))
			return
		}
		if paused {
			b.reply(chatID, "Digest paused for this search.")
		} else {
			b.reply(chatID, "Digest resumed for this search.")
		}
	}
}
