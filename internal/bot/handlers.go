package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"jobscout_bot/internal/model"
	"jobscout_bot/internal/session"
)

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	if _, err := b.store.GetUser(ctx, chatID); err != nil {
		b.log.Error("init user", "chat_id", chatID, "error", err)
	}
	b.reply(chatID, `Welcome to JobScout!

Search job boards and get digests for your saved searches.

Quick start:
1. /search python developer loc:Berlin — run a search
2. /save berlin-python — save it
3. /subs — subscribe to a daily digest

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Searching:
/search <query> — search jobs; query supports loc:, hours:, remote:yes|no, type:, country:
/salary <amount|any> — only show jobs at or above a yearly salary
/currency <code|any> — only show jobs paying in a currency
/companies <a,b|clear> — only show jobs from these companies

Saving:
/save <name> — save the current search
/saved — list saved searches
/subs — manage digest subscriptions
/favorites — list favorite jobs
/favorites_clear — clear favorites

Preferences:
/mute <company> — hide a company from results
/unmute <company> — unhide a company
/sources [name] — show or toggle job boards
/region <code> — set your search region (e.g. usa, germany)
/setcurrency <code> — set your base currency
/rates — show cached exchange rates
/notifications — toggle digest notifications
/settings — show current settings

Data:
/export — export your stored data
/delete confirm — delete all your data`)
}

func (b *Bot) handleSearch(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /search <keywords> [loc:City] [hours:24] [remote:yes] [type:fulltime] [country:usa]")
		return
	}

	u, err := b.store.GetUser(ctx, chatID)
	if err != nil {
		b.log.Error("load user", "chat_id", chatID, "error", err)
		b.reply(chatID, "Something went wrong, please try again.")
		return
	}

	filters := ParseQuickQuery(args)
	country := u.Country
	if filters.Country != "" {
		country = filters.Country
	}

	b.reply(chatID, "Searching…")

	sess := session.New(b.searcher, filters, u.Sources, country, b.log)
	n, err := sess.Start(ctx)
	if err != nil {
		b.log.Warn("search failed", "chat_id", chatID, "error", err)
		b.reply(chatID, "Search failed, please try again later.")
		return
	}
	if n == 0 {
		b.reply(chatID, "No results. Try different keywords or a wider area.")
		return
	}

	b.setChatSession(chatID, &chatSession{sess: sess, page: 1})
	if err := b.store.SaveLastResults(ctx, chatID, sess.Rows()); err != nil {
		b.log.Error("save last results", "chat_id", chatID, "error", err)
	}
	b.showPage(ctx, chatID, 1)
}

func (b *Bot) showPage(ctx context.Context, chatID int64, page int) {
	cs := b.chatSession(chatID)
	if cs == nil {
		b.reply(chatID, "No active search. Use /search first.")
		return
	}

	u, err := b.store.GetUser(ctx, chatID)
	if err != nil {
		b.log.Error("load user", "chat_id", chatID, "error", err)
		b.reply(chatID, "Something went wrong, please try again.")
		return
	}

	win := cs.sess.Page(ctx, page, u.MutedSet())
	if win.Total == 0 {
		b.reply(chatID, "No results match your filters. Relax them with /salary any or /companies clear.")
		return
	}
	cs.page = page

	// The working set may have grown during fetch-more.
	if err := b.store.SaveLastResults(ctx, chatID, cs.sess.Rows()); err != nil {
		b.log.Error("save last results", "chat_id", chatID, "error", err)
	}

	for i, j := range win.Jobs {
		idx := win.Start + i
		msg := tgbotapi.NewMessage(chatID, FormatJobCard(j))
		msg.DisableWebPagePreview = !u.Previews
		msg.ReplyMarkup = cardKeyboard(j, idx, page, win.HasMore)
		if _, err := b.api.Send(msg); err != nil {
			b.log.Error("send card", "chat_id", chatID, "error", err)
		}
	}
}

func cardKeyboard(j model.JobRecord, idx, page int, hasMore bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	if u := j.LinkURL(); u != "" {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonURL("Open", u),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("☆ Favorite", fmt.Sprintf("fav:%d", idx)),
		tgbotapi.NewInlineKeyboardButtonData("Mute company", fmt.Sprintf("mute:%d", idx)),
	})
	nav := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("Sort: salary", "sort:salary"),
		tgbotapi.NewInlineKeyboardButtonData("Sort: date", "sort:date"),
	}
	if hasMore {
		nav = append([]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("More", fmt.Sprintf("page:%d", page+1)),
		}, nav...)
	}
	rows = append(rows, nav)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) handleSalary(ctx context.Context, chatID int64, args string) {
	cs := b.chatSession(chatID)
	if cs == nil {
		b.reply(chatID, "No active search. Use /search first.")
		return
	}
	r := cs.sess.Refine()
	if args == "" || args == "any" {
		r.MinSalaryAnnual = 0
		cs.sess.SetRefine(r)
		b.reply(chatID, "Salary filter removed.")
	} else {
		n, err := strconv.Atoi(args)
		if err != nil || n < 0 {
			b.reply(chatID, "Usage: /salary <yearly amount> or /salary any")
			return
		}
		r.MinSalaryAnnual = n
		cs.sess.SetRefine(r)
		b.reply(chatID, fmt.Sprintf("Showing jobs from %d per year.", n))
	}
	b.showPage(ctx, chatID, 1)
}

func (b *Bot) handleCurrency(ctx context.Context, chatID int64, args string) {
	cs := b.chatSession(chatID)
	if cs == nil {
		b.reply(chatID, "No active search. Use /search first.")
		return
	}
	r := cs.sess.Refine()
	if args == "" || args == "any" {
		r.Currency = ""
		cs.sess.SetRefine(r)
		b.reply(chatID, "Currency filter removed.")
	} else {
		r.Currency = strings.ToUpper(args)
		cs.sess.SetRefine(r)
		b.reply(chatID, fmt.Sprintf("Showing jobs paying in %s.", r.Currency))
	}
	b.showPage(ctx, chatID, 1)
}

func (b *Bot) handleCompanies(ctx context.Context, chatID int64, args string) {
	cs := b.chatSession(chatID)
	if cs == nil {
		b.reply(chatID, "No active search. Use /search first.")
		return
	}
	r := cs.sess.Refine()
	if args == "" || args == "clear" {
		r.IncludeCompanies = nil
		cs.sess.SetRefine(r)
		b.reply(chatID, "Company filter removed.")
	} else {
		var companies []string
		for _, c := range strings.Split(args, ",") {
			if c = strings.TrimSpace(c); c != "" {
				companies = append(companies, c)
			}
		}
		r.IncludeCompanies = companies
		cs.sess.SetRefine(r)
		b.reply(chatID, fmt.Sprintf("Showing jobs from: %s.", strings.Join(companies, ", ")))
	}
	b.showPage(ctx, chatID, 1)
}

func (b *Bot) handleFavorites(ctx context.Context, chatID int64) {
	u, err := b.store.GetUser(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatFavorites(u.Favorites))
}

func (b *Bot) handleFavoritesClear(ctx context.Context, chatID int64) {
	if err := b.store.ClearFavorites(ctx, chatID); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, "Favorites cleared.")
}

func (b *Bot) handleSave(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /save <name>")
		return
	}
	cs := b.chatSession(chatID)
	if cs == nil {
		b.reply(chatID, "No active search. Use /search first, then /save <name>.")
		return
	}
	if err := b.store.SaveSearch(ctx, chatID, args, cs.sess.Filters()); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Search saved as %q. Manage digests with /subs.", args))
}

func (b *Bot) handleSaved(ctx context.Context, chatID int64) {
	u, err := b.store.GetUser(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatSavedSearches(u.SavedSearches))
}

func (b *Bot) handleSubs(ctx context.Context, chatID int64) {
	u, err := b.store.GetUser(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if len(u.SavedSearches) == 0 {
		b.reply(chatID, "No saved searches yet. Run /search and then /save <name>.")
		return
	}

	for i, ss := range u.SavedSearches {
		freq := ss.Subscription.Freq
		if freq == "" {
			freq = model.FreqDaily
		}
		state := string(freq)
		if ss.Subscription.Paused {
			state += ", paused"
		}
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("%s [%s]", ss.Name, state))
		msg.ReplyMarkup = subsKeyboard(i, ss.Subscription.Paused)
		if _, err := b.api.Send(msg); err != nil {
			b.log.Error("send subs", "chat_id", chatID, "error", err)
		}
	}
}

func subsKeyboard(idx int, paused bool) tgbotapi.InlineKeyboardMarkup {
	toggle := "Pause"
	if paused {
		toggle = "Resume"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Off", fmt.Sprintf("dg:freq:%d:off", idx)),
			tgbotapi.NewInlineKeyboardButtonData("Daily", fmt.Sprintf("dg:freq:%d:daily", idx)),
			tgbotapi.NewInlineKeyboardButtonData("3 days", fmt.Sprintf("dg:freq:%d:3d", idx)),
			tgbotapi.NewInlineKeyboardButtonData("Weekly", fmt.Sprintf("dg:freq:%d:weekly", idx)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(toggle, fmt.Sprintf("dg:toggle:%d", idx)),
		),
	)
}

func (b *Bot) handleMute(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /mute <company>")
		return
	}
	_, err := b.store.MutateUser(ctx, chatID, func(u *model.UserRecord) {
		if !u.IsMuted(args) {
			u.MutedCompanies = append(u.MutedCompanies, args)
		}
	})
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("%q muted. Jobs from this company are hidden.", args))
}

func (b *Bot) handleUnmute(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /unmute <company>")
		return
	}
	_, err := b.store.MutateUser(ctx, chatID, func(u *model.UserRecord) {
		kept := u.MutedCompanies[:0:0]
		for _, c := range u.MutedCompanies {
			if c != args {
				kept = append(kept, c)
			}
		}
		u.MutedCompanies = kept
	})
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("%q unmuted.", args))
}

func (b *Bot) handleSources(ctx context.Context, chatID int64, args string) {
	if args == "" {
		u, err := b.store.GetUser(ctx, chatID)
		if err != nil {
			b.reply(chatID, fmt.Sprintf("Error: %v", err))
			return
		}
		b.reply(chatID, fmt.Sprintf("Enabled sources: %s\nAvailable: %s\nToggle with /sources <name>.",
			strings.Join(u.Sources, ", "), strings.Join(model.DefaultSources, ", ")))
		return
	}

	name := strings.ToLower(args)
	known := false
	for _, s := range model.DefaultSources {
		if s == name {
			known = true
			break
		}
	}
	if !known {
		b.reply(chatID, fmt.Sprintf("Unknown source %q. Available: %s.", name, strings.Join(model.DefaultSources, ", ")))
		return
	}

	var enabled bool
	_, err := b.store.MutateUser(ctx, chatID, func(u *model.UserRecord) {
		kept := u.Sources[:0:0]
		found := false
		for _, s := range u.Sources {
			if s == name {
				found = true
				continue
			}
			kept = append(kept, s)
		}
		if !found {
			kept = append(kept, name)
		}
		u.Sources = kept
		enabled = !found
	})
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if enabled {
		b.reply(chatID, fmt.Sprintf("Source %q enabled.", name))
	} else {
		b.reply(chatID, fmt.Sprintf("Source %q disabled.", name))
	}
}

func (b *Bot) handleRegion(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /region <code>, e.g. /region usa or /region germany")
		return
	}
	region := strings.ToLower(args)
	_, err := b.store.MutateUser(ctx, chatID, func(u *model.UserRecord) {
		u.Country = region
	})
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Region set to %q.", region))
}

func (b *Bot) handleSetCurrency(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /setcurrency <code>, e.g. /setcurrency EUR")
		return
	}
	code := strings.ToUpper(args)
	_, err := b.store.MutateUser(ctx, chatID, func(u *model.UserRecord) {
		u.BaseCurrency = code
		// Cached rates belong to the old base.
		u.FXRates = map[string]float64{}
		u.FXTimestamp = 0
		u.FXError = ""
	})
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Base currency set to %s.", code))
}

func (b *Bot) handleRates(ctx context.Context, chatID int64) {
	u, err := b.store.GetUser(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	// Refresh outside the store lock, then persist the outcome.
	rates := b.fxCache.EnsureRates(ctx, u)
	_, err = b.store.MutateUser(ctx, chatID, func(rec *model.UserRecord) {
		rec.FXRates = u.FXRates
		rec.FXTimestamp = u.FXTimestamp
		rec.FXError = u.FXError
	})
	if err != nil {
		b.log.Error("persist fx rates", "chat_id", chatID, "error", err)
	}

	if len(rates) == 0 {
		text := "Exchange rates are unavailable right now."
		if u.FXError != "" {
			text += "\n" + u.FXError
		}
		b.reply(chatID, text)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Rates (base %s):\n", u.BaseCurrency)
	codes := make([]string, 0, len(rates))
	for code := range rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	shown := 0
	for _, code := range codes {
		if code == u.BaseCurrency {
			continue
		}
		fmt.Fprintf(&sb, "%s: %.4f\n", code, rates[code])
		if shown++; shown >= 10 {
			break
		}
	}
	if u.FXError != "" {
		fmt.Fprintf(&sb, "\nLast refresh failed, rates may be stale: %s", u.FXError)
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) handleNotifications(ctx context.Context, chatID int64) {
	var on bool
	_, err := b.store.MutateUser(ctx, chatID, func(u *model.UserRecord) {
		u.Notifications = !u.Notifications
		on = u.Notifications
	})
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Notifications %s.", onOff(on)))
}

func (b *Bot) handleSettings(ctx context.Context, chatID int64) {
	u, err := b.store.GetUser(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatSettings(u))
}

func (b *Bot) handleExport(ctx context.Context, chatID int64) {
	u, err := b.store.GetUser(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	data, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  "jobscout-export.json",
		Bytes: data,
	})
	if _, err := b.api.Send(doc); err != nil {
		b.log.Error("send export", "chat_id", chatID, "error", err)
		b.reply(chatID, "Could not send the export file.")
	}
}

func (b *Bot) handleDelete(ctx context.Context, chatID int64, args string) {
	if args != "confirm" {
		b.reply(chatID, "This removes all your stored data (favorites, saved searches, settings). Send /delete confirm to proceed.")
		return
	}
	if err := b.store.DeleteUser(ctx, chatID); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.mu.Lock()
	delete(b.sessions, chatID)
	b.mu.Unlock()
	b.reply(chatID, "All your data has been deleted.")
}
