package bot

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"jobscout_bot/internal/config"
	"jobscout_bot/internal/model"
	"jobscout_bot/internal/session"
	"jobscout_bot/internal/storage"
)

// mockAPI records every outgoing message.
type mockAPI struct {
	sent []tgbotapi.Chattable
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.sent = append(m.sent, c)
	return tgbotapi.Message{}, nil
}

func (m *mockAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (m *mockAPI) StopReceivingUpdates() {}

func (m *mockAPI) texts() []string {
	var out []string
	for _, c := range m.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (m *mockAPI) lastText(t *testing.T) string {
	t.Helper()
	texts := m.texts()
	if len(texts) == 0 {
		t.Fatal("no messages sent")
	}
	return texts[len(texts)-1]
}

type stubSearcher struct {
	rows []model.JobRecord
	err  error
}

func (s *stubSearcher) Search(context.Context, model.FilterSet, []string, string, int, int) ([]model.JobRecord, error) {
	return s.rows, s.err
}

func newTestBot(t *testing.T, searcher session.Searcher) (*Bot, *mockAPI) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.NewFileStore(filepath.Join(t.TempDir(), "users.json"), log)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	api := &mockAPI{}
	return &Bot{
		api:      api,
		store:    store,
		searcher: searcher,
		cfg:      &config.Config{},
		log:      log,
		sessions: make(map[int64]*chatSession),
	}, api
}

func intPtr(n int) *int { return &n }

func sampleJobs() []model.JobRecord {
	return []model.JobRecord{
		{
			Title: "Go Dev", Company: "Acme", Location: "Berlin",
			Site: "indeed", DatePosted: "01.05.2024", JobType: "fulltime",
			Remote: "Remote", Salary: "100000 USD/yearly",
			Interval: "yearly", MinAmount: intPtr(100000), MaxAmount: intPtr(100000),
			Currency: "USD", URL: "https://x.com/1", RawURL: "https://x.com/1",
		},
		{
			Title: "Py Dev", Company: "Beta", Location: "Munich",
			Site: "linkedin", DatePosted: "02.05.2024", JobType: "fulltime",
			Remote: "—", Salary: "—",
			URL: "https://x.com/2", RawURL: "https://x.com/2",
		},
	}
}

func TestHandleSearchShowsFirstCard(t *testing.T) {
	b, api := newTestBot(t, &stubSearcher{rows: sampleJobs()})

	b.handleSearch(context.Background(), 1, "go developer")

	texts := api.texts()
	var card string
	for _, txt := range texts {
		if strings.Contains(txt, "Go Dev — Acme") {
			card = txt
		}
	}
	if card == "" {
		t.Fatalf("no job card sent, got: %v", texts)
	}

	u, err := b.store.GetUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if len(u.LastResults) != 2 {
		t.Errorf("LastResults = %d rows, want 2", len(u.LastResults))
	}
}

func TestHandleSearchUpstreamFailure(t *testing.T) {
	b, api := newTestBot(t, &stubSearcher{err: io.ErrUnexpectedEOF})

	b.handleSearch(context.Background(), 1, "go")

	if got := api.lastText(t); !strings.Contains(got, "failed") {
		t.Errorf("last message = %q, want failure notice", got)
	}
	if b.chatSession(1) != nil {
		t.Error("failed search must not leave a session behind")
	}
}

func TestHandleSearchNoResults(t *testing.T) {
	b, api := newTestBot(t, &stubSearcher{})

	b.handleSearch(context.Background(), 1, "nothing")

	if got := api.lastText(t); !strings.Contains(got, "No results") {
		t.Errorf("last message = %q", got)
	}
}

func TestShowPageWithoutSession(t *testing.T) {
	b, api := newTestBot(t, &stubSearcher{})

	b.showPage(context.Background(), 1, 1)

	if got := api.lastText(t); !strings.Contains(got, "No active search") {
		t.Errorf("last message = %q", got)
	}
}

func TestFavoriteCallback(t *testing.T) {
	b, api := newTestBot(t, &stubSearcher{rows: sampleJobs()})
	ctx := context.Background()

	b.handleSearch(ctx, 1, "go")
	b.callbackFavorite(ctx, 1, "0")

	if got := api.lastText(t); !strings.Contains(got, "Added to favorites") {
		t.Errorf("last message = %q", got)
	}

	// Saving again is a no-op.
	b.callbackFavorite(ctx, 1, "0")
	if got := api.lastText(t); !strings.Contains(got, "Already in favorites") {
		t.Errorf("last message = %q", got)
	}

	u, err := b.store.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if len(u.Favorites) != 1 {
		t.Errorf("favorites = %d, want 1", len(u.Favorites))
	}
}

func TestMuteCallbackHidesCompany(t *testing.T) {
	b, _ := newTestBot(t, &stubSearcher{rows: sampleJobs()})
	ctx := context.Background()

	b.handleSearch(ctx, 1, "go")
	b.callbackMute(ctx, 1, "0")

	u, err := b.store.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !u.IsMuted("Acme") {
		t.Fatalf("Acme not muted: %v", u.MutedCompanies)
	}

	cs := b.chatSession(1)
	for _, j := range cs.sess.Filtered(u.MutedSet()) {
		if j.Company == "Acme" {
			t.Error("muted company still in filtered rows")
		}
	}
}

func TestSalaryRefineNarrowsResults(t *testing.T) {
	b, _ := newTestBot(t, &stubSearcher{rows: sampleJobs()})
	ctx := context.Background()

	b.handleSearch(ctx, 1, "go")
	b.handleSalary(ctx, 1, "50000")

	cs := b.chatSession(1)
	rows := cs.sess.Filtered(nil)
	if len(rows) != 1 || rows[0].Title != "Go Dev" {
		t.Errorf("filtered rows = %+v, want only the salaried job", rows)
	}

	b.handleSalary(ctx, 1, "any")
	if got := len(cs.sess.Filtered(nil)); got != 2 {
		t.Errorf("after reset got %d rows, want 2", got)
	}
}

func TestSaveAndSubsFlow(t *testing.T) {
	b, api := newTestBot(t, &stubSearcher{rows: sampleJobs()})
	ctx := context.Background()

	b.handleSearch(ctx, 1, "go loc:Berlin")
	b.handleSave(ctx, 1, "berlin-go")
	b.callbackDigest(ctx, 1, "freq:0:daily")

	u, err := b.store.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if len(u.SavedSearches) != 1 {
		t.Fatalf("saved searches = %d, want 1", len(u.SavedSearches))
	}
	ss := u.SavedSearches[0]
	if ss.Name != "berlin-go" || ss.Filters.Location != "Berlin" {
		t.Errorf("saved search = %+v", ss)
	}
	if ss.Subscription.Freq != model.FreqDaily {
		t.Errorf("Freq = %q, want daily", ss.Subscription.Freq)
	}

	b.callbackDigest(ctx, 1, "toggle:0")
	u, _ = b.store.GetUser(ctx, 1)
	if !u.SavedSearches[0].Subscription.Paused {
		t.Error("toggle did not pause the subscription")
	}

	if got := api.lastText(t); !strings.Contains(got, "paused") {
		t.Errorf("last message = %q", got)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	b, api := newTestBot(t, &stubSearcher{})
	ctx := context.Background()

	if _, err := b.store.GetUser(ctx, 1); err != nil {
		t.Fatalf("GetUser: %v", err)
	}

	b.handleDelete(ctx, 1, "")
	if got := api.lastText(t); !strings.Contains(got, "confirm") {
		t.Errorf("last message = %q, want confirmation prompt", got)
	}

	b.handleDelete(ctx, 1, "confirm")
	ids, err := b.store.(*storage.FileStore).ListUserIDs()
	if err != nil {
		t.Fatalf("ListUserIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("ids = %v, want empty after delete", ids)
	}
}

func TestUnknownSourceRejected(t *testing.T) {
	b, api := newTestBot(t, &stubSearcher{})

	b.handleSources(context.Background(), 1, "craigslist")

	if got := api.lastText(t); !strings.Contains(got, "Unknown source") {
		t.Errorf("last message = %q", got)
	}
}

func TestSourcesToggle(t *testing.T) {
	b, _ := newTestBot(t, &stubSearcher{})
	ctx := context.Background()

	b.handleSources(ctx, 1, "indeed")
	u, err := b.store.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	for _, s := range u.Sources {
		if s == "indeed" {
			t.Fatal("indeed should be disabled after toggle")
		}
	}

	b.handleSources(ctx, 1, "indeed")
	u, _ = b.store.GetUser(ctx, 1)
	found := false
	for _, s := range u.Sources {
		if s == "indeed" {
			found = true
		}
	}
	if !found {
		t.Error("indeed should be re-enabled after second toggle")
	}
}
