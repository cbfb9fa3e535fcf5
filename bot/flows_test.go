package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ulugbekdev/cargobot/cache"
	coreconfig "github.com/ulugbekdev/cargobot/core/config"
	"github.com/ulugbekdev/cargobot/store"

	tele "gopkg.in/telebot.v4"
)

const adminID int64 = 42

// fakeStore is an in-memory store.Store that counts writes.
type fakeStore struct {
	mu      sync.Mutex
	parties []store.Party
	clients []store.Client
	writes  int
}

func (f *fakeStore) Init(ctx context.Context) error { return nil }

func (f *fakeStore) ListParties(ctx context.Context) ([]store.Party, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Party(nil), f.parties...), nil
}

func (f *fakeStore) AppendParty(ctx context.Context, p store.Party) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parties = append(f.parties, p)
	f.writes++
	return nil
}

func (f *fakeStore) UpdatePartyStatus(ctx context.Context, code, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.parties {
		if f.parties[i].Code == code {
			f.parties[i].Status = status
			f.writes++
			return nil
		}
	}
	return store.WrapErr("update", store.TableParties, store.ErrNotFound)
}

func (f *fakeStore) DeleteParty(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.parties {
		if f.parties[i].Code == code {
			f.parties = append(f.parties[:i], f.parties[i+1:]...)
			f.writes++
			return nil
		}
	}
	return store.WrapErr("delete", store.TableParties, store.ErrNotFound)
}

func (f *fakeStore) ListClients(ctx context.Context) ([]store.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Client(nil), f.clients...), nil
}

func (f *fakeStore) AppendClient(ctx context.Context, c store.Client) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients = append(f.clients, c)
	f.writes++
	return nil
}

func (f *fakeStore) DeleteClient(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.clients {
		if f.clients[i].ID == id {
			f.clients = append(f.clients[:i], f.clients[i+1:]...)
			f.writes++
			return nil
		}
	}
	return store.WrapErr("delete", store.TableClients, store.ErrNotFound)
}

var updateSeq atomic.Int64

// fakeContext implements the subset of tele.Context the bot touches.
// Unimplemented methods panic via the embedded nil interface, which is
// exactly what a test should do if the bot starts calling something new.
type fakeContext struct {
	tele.Context
	user     *tele.User
	text     string
	photo    *tele.Photo
	updateID int
	kv       map[string]interface{}
	sent     []interface{}
	sentOpts [][]interface{}
	photoErr error
}

func newFakeContext(userID int64, text string) *fakeContext {
	return &fakeContext{
		user:     &tele.User{ID: userID},
		text:     text,
		updateID: int(updateSeq.Add(1)),
		kv:       map[string]interface{}{},
	}
}

func (f *fakeContext) Update() tele.Update {
	u := tele.Update{ID: f.updateID}
	u.Message = f.message()
	return u
}

func (f *fakeContext) Sender() *tele.User { return f.user }

func (f *fakeContext) Chat() *tele.Chat { return &tele.Chat{ID: f.user.ID, Type: tele.ChatPrivate} }

func (f *fakeContext) Text() string { return f.text }

func (f *fakeContext) Message() *tele.Message { return f.message() }

func (f *fakeContext) message() *tele.Message {
	return &tele.Message{Text: f.text, Photo: f.photo, Sender: f.user}
}

func (f *fakeContext) Get(key string) interface{} { return f.kv[key] }

func (f *fakeContext) Set(key string, val interface{}) { f.kv[key] = val }

func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	if _, isPhoto := what.(*tele.Photo); isPhoto && f.photoErr != nil {
		return f.photoErr
	}
	f.sent = append(f.sent, what)
	f.sentOpts = append(f.sentOpts, opts)
	return nil
}

// lastMarkup returns the reply keyboard attached to the last sent message.
func (f *fakeContext) lastMarkup(t *testing.T) *tele.ReplyMarkup {
	t.Helper()
	if len(f.sentOpts) == 0 {
		t.Fatal("no message sent")
	}
	for _, opt := range f.sentOpts[len(f.sentOpts)-1] {
		if m, ok := opt.(*tele.ReplyMarkup); ok {
			return m
		}
	}
	t.Fatal("last message carried no reply markup")
	return nil
}

func (f *fakeContext) lastText(t *testing.T) string {
	t.Helper()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if s, ok := f.sent[i].(string); ok {
			return s
		}
	}
	t.Fatal("no text message sent")
	return ""
}

type testEnv struct {
	bot     *Bot
	store   *fakeStore
	onText  tele.HandlerFunc
	onPhoto tele.HandlerFunc
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := &fakeStore{}
	ch := cache.New(st)
	if err := ch.Reload(context.Background()); err != nil {
		t.Fatalf("initial reload: %v", err)
	}

	cfg := &coreconfig.Config{}
	cfg.Telegram.AdminIDs = []int64{adminID}

	b := New(cfg, st, ch)
	env := &testEnv{bot: b, store: st}
	for _, r := range b.Routes(b.Registry()) {
		switch r.Endpoint {
		case tele.OnText:
			env.onText = r.Handler
		case tele.OnPhoto:
			env.onPhoto = r.Handler
		}
	}
	if env.onText == nil || env.onPhoto == nil {
		t.Fatal("routes missing text or photo handler")
	}
	return env
}

// send runs one incoming text message through the full route chain and
// returns the context for assertions on the replies.
func (e *testEnv) send(t *testing.T, userID int64, text string) *fakeContext {
	t.Helper()
	c := newFakeContext(userID, text)
	if err := e.onText(c); err != nil {
		t.Fatalf("handler error for %q: %v", text, err)
	}
	return c
}

func (e *testEnv) sendPhoto(t *testing.T, userID int64, fileID string) *fakeContext {
	t.Helper()
	c := newFakeContext(userID, "")
	c.photo = &tele.Photo{File: tele.File{FileID: fileID}}
	if err := e.onPhoto(c); err != nil {
		t.Fatalf("photo handler error: %v", err)
	}
	return c
}

func TestAddPartyThenCustomerLookup(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, adminID, LabelAddParty)
	c := env.send(t, adminID, "PP999")
	if got := c.lastText(t); !strings.Contains(got, "PP999") {
		t.Fatalf("confirmation missing code: %q", got)
	}
	if len(env.store.parties) != 1 || env.store.parties[0].Status != store.StatusNew {
		t.Fatalf("party not stored with default status: %+v", env.store.parties)
	}

	env.send(t, 7, LabelPartySearch)
	c = env.send(t, 7, "PP999")
	got := c.lastText(t)
	if !strings.Contains(got, "PP999") || !strings.Contains(got, store.StatusNew) {
		t.Fatalf("lookup answer = %q", got)
	}
	if env.bot.InProgress(7) {
		t.Fatal("session not cleared after successful lookup")
	}
}

func TestPartyLookupMissStaysInFlow(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, 7, LabelPartySearch)
	c := env.send(t, 7, "NOPE")
	if got := c.lastText(t); !strings.Contains(got, "NOPE") {
		t.Fatalf("miss reply = %q", got)
	}
	if !env.bot.InProgress(7) {
		t.Fatal("miss should keep the lookup session alive")
	}
}

func TestAddClientFullChain(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, adminID, LabelAddClient)
	answers := []string{"1001", "3", "1.2", "50", "Tashkent", "2024-01-01", SkipWord, "PP999"}
	var c *fakeContext
	for _, a := range answers {
		c = env.send(t, adminID, a)
	}

	if got := c.lastText(t); !strings.Contains(got, "1001") {
		t.Fatalf("confirmation = %q", got)
	}
	if len(env.store.clients) != 1 {
		t.Fatalf("clients = %+v", env.store.clients)
	}
	want := store.Client{
		ID: "1001", Party: "PP999", Mesta: "3", Kub: "1.2", Kg: "50",
		Destination: "Tashkent", Date: "2024-01-01", Image: "",
	}
	if env.store.clients[0] != want {
		t.Fatalf("stored client = %+v, want %+v", env.store.clients[0], want)
	}
	if env.bot.InProgress(adminID) {
		t.Fatal("session not cleared after completion")
	}
}

func TestAddClientPhotoForImageStep(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, adminID, LabelAddClient)
	for _, a := range []string{"1001", "3", "1.2", "50", "Tashkent", "2024-01-01"} {
		env.send(t, adminID, a)
	}
	env.sendPhoto(t, adminID, "file-abc")
	env.send(t, adminID, "PP999")

	if len(env.store.clients) != 1 || env.store.clients[0].Image != "file-abc" {
		t.Fatalf("photo file id not captured: %+v", env.store.clients)
	}
}

func TestClientLookupRendersCardWithResolvedStatus(t *testing.T) {
	env := newTestEnv(t)
	env.store.parties = []store.Party{{Code: "PP1", Status: "Arrived"}}
	env.store.clients = []store.Client{{ID: "1001", Party: "PP1", Destination: "Tashkent"}}
	if err := env.bot.cache.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	env.send(t, 7, LabelClientSearch)
	c := env.send(t, 7, "1001")
	got := c.lastText(t)
	if !strings.Contains(got, "Arrived") || !strings.Contains(got, "Tashkent") {
		t.Fatalf("card = %q", got)
	}
}

func TestClientLookupUnknownPartyStatus(t *testing.T) {
	env := newTestEnv(t)
	env.store.clients = []store.Client{{ID: "1001", Party: "GONE"}}
	if err := env.bot.cache.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	env.send(t, 7, LabelClientSearch)
	c := env.send(t, 7, "1001")
	if got := c.lastText(t); !strings.Contains(got, cache.UnknownStatus) {
		t.Fatalf("expected %q sentinel, got %q", cache.UnknownStatus, got)
	}
}

func TestClientLookupPhotoFailureFallsBackToText(t *testing.T) {
	env := newTestEnv(t)
	env.store.clients = []store.Client{{ID: "1001", Party: "PP1", Image: "file-xyz"}}
	if err := env.bot.cache.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	env.send(t, 7, LabelClientSearch)
	c := newFakeContext(7, "1001")
	c.photoErr = context.DeadlineExceeded
	if err := env.onText(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got := c.lastText(t); !strings.Contains(got, "1001") {
		t.Fatalf("fallback text = %q", got)
	}
}

func TestClientLookupMissClearsSession(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, 7, LabelClientSearch)
	c := env.send(t, 7, "404")
	if got := c.lastText(t); got != msgClientNotFound {
		t.Fatalf("miss reply = %q", got)
	}
	if env.bot.InProgress(7) {
		t.Fatal("client lookup miss should clear the session")
	}
}

func TestUpdateStatusTwoSteps(t *testing.T) {
	env := newTestEnv(t)
	env.store.parties = []store.Party{{Code: "PP1", Status: store.StatusNew}}

	env.send(t, adminID, LabelUpdateStatus)
	env.send(t, adminID, "PP1")
	c := env.send(t, adminID, "In transit")
	if got := c.lastText(t); !strings.Contains(got, "In transit") {
		t.Fatalf("confirmation = %q", got)
	}
	if env.store.parties[0].Status != "In transit" {
		t.Fatalf("status not updated: %+v", env.store.parties)
	}
}

func TestUpdateStatusMissingParty(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, adminID, LabelUpdateStatus)
	env.send(t, adminID, "GONE")
	c := env.send(t, adminID, "x")
	if got := c.lastText(t); got != msgPartyNotFound {
		t.Fatalf("reply = %q", got)
	}
	if env.bot.InProgress(adminID) {
		t.Fatal("failed terminal step should clear the session")
	}
}

func TestDeleteParty(t *testing.T) {
	env := newTestEnv(t)
	env.store.parties = []store.Party{{Code: "PP1", Status: store.StatusNew}}

	env.send(t, adminID, LabelDeleteParty)
	env.send(t, adminID, "PP1")
	if len(env.store.parties) != 0 {
		t.Fatalf("party not deleted: %+v", env.store.parties)
	}
}

func TestDeleteClientNotFound(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, adminID, LabelDeleteClient)
	c := env.send(t, adminID, "404")
	if got := c.lastText(t); got != msgClientNotFound {
		t.Fatalf("reply = %q", got)
	}
}

func TestNonAdminRejectedWithoutMutation(t *testing.T) {
	env := newTestEnv(t)

	c := env.send(t, 7, LabelAddParty)
	if got := c.lastText(t); got != msgAdminsOnly {
		t.Fatalf("reply = %q", got)
	}
	if env.bot.InProgress(7) {
		t.Fatal("rejected user got a session")
	}

	// The label text must not leak into a flow either.
	env.send(t, 7, "PP999")
	if env.store.writes != 0 {
		t.Fatalf("store mutated by non-admin: %d writes", env.store.writes)
	}
}

func TestCancelMidFlowNoMutation(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, adminID, LabelAddClient)
	env.send(t, adminID, "1001")
	c := env.send(t, adminID, LabelCancel)

	if got := c.lastText(t); got != msgCancelled {
		t.Fatalf("cancel reply = %q", got)
	}
	if env.bot.InProgress(adminID) {
		t.Fatal("session survived cancel")
	}
	if env.store.writes != 0 {
		t.Fatalf("cancel still wrote to store: %d writes", env.store.writes)
	}
}

func TestFlowRestartDiscardsScratch(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, adminID, LabelAddClient)
	env.send(t, adminID, "1001")

	// Starting another flow replaces the draft entirely.
	env.send(t, adminID, LabelAddParty)
	env.send(t, adminID, "PP5")

	if len(env.store.clients) != 0 {
		t.Fatalf("abandoned draft was persisted: %+v", env.store.clients)
	}
	if len(env.store.parties) != 1 || env.store.parties[0].Code != "PP5" {
		t.Fatalf("parties = %+v", env.store.parties)
	}
}

func TestListingsChunkAndOrder(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 500; i++ {
		env.store.parties = append(env.store.parties, store.Party{
			Code:   fmt.Sprintf("PP%03d", i),
			Status: strings.Repeat("s", 20),
		})
	}
	if err := env.bot.cache.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	c := env.send(t, adminID, LabelAllParties)
	if len(c.sent) < 2 {
		t.Fatalf("expected chunked output, got %d messages", len(c.sent))
	}
	for _, m := range c.sent {
		s, ok := m.(string)
		if !ok {
			t.Fatalf("non-text listing message: %T", m)
		}
		if len([]rune(s)) > 3000 {
			t.Fatalf("chunk exceeds limit: %d runes", len([]rune(s)))
		}
	}
}

func TestListingsEmpty(t *testing.T) {
	env := newTestEnv(t)
	c := env.send(t, adminID, LabelAllClients)
	if got := c.lastText(t); got != msgNoClientsYet {
		t.Fatalf("reply = %q", got)
	}
}

func TestStartShowsRoleMenu(t *testing.T) {
	env := newTestEnv(t)
	c := env.send(t, adminID, "/start")
	if got := c.lastText(t); got != msgWelcome {
		t.Fatalf("reply = %q", got)
	}
	c = env.send(t, 7, "/start")
	if got := c.lastText(t); got != msgWelcome {
		t.Fatalf("reply = %q", got)
	}
}

func TestUnknownTextOutsideFlowIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	c := env.send(t, 7, "hello there")
	if len(c.sent) != 0 {
		t.Fatalf("unmatched text outside a flow got a reply: %+v", c.sent)
	}
}

func TestBackSwitchesAdminToCustomerMenu(t *testing.T) {
	env := newTestEnv(t)

	c := env.send(t, adminID, LabelBack)
	if got := c.lastText(t); got != msgWelcome {
		t.Fatalf("reply = %q", got)
	}
	m := c.lastMarkup(t)
	if len(m.ReplyKeyboard) == 0 || m.ReplyKeyboard[0][0].Text != LabelPartySearch {
		t.Fatalf("expected customer keyboard, got %+v", m.ReplyKeyboard)
	}

	// /start restores the admin keyboard.
	c = env.send(t, adminID, "/start")
	m = c.lastMarkup(t)
	if len(m.ReplyKeyboard) == 0 || m.ReplyKeyboard[0][0].Text != LabelAddParty {
		t.Fatalf("expected admin keyboard, got %+v", m.ReplyKeyboard)
	}
}

func TestMenuLabelMidFlowStartsNewFlow(t *testing.T) {
	env := newTestEnv(t)

	// A customer label pressed while another customer flow is collecting
	// input must start the new flow instead of being read as the answer.
	env.send(t, 7, LabelPartySearch)
	c := env.send(t, 7, LabelClientSearch)
	if got := c.lastText(t); got != promptClientID {
		t.Fatalf("reply = %q", got)
	}

	c = env.send(t, 7, "404")
	if got := c.lastText(t); got != msgClientNotFound {
		t.Fatalf("reply = %q", got)
	}
}

func TestStartMidFlowResetsConversation(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, adminID, LabelAddParty)
	env.send(t, adminID, "/start")
	if env.bot.InProgress(adminID) {
		t.Fatal("/start left the flow active")
	}

	env.send(t, adminID, "PP1")
	if env.store.writes != 0 {
		t.Fatalf("text after /start still reached the flow: %d writes", env.store.writes)
	}
}

func TestConcurrentSameUserMessagesApplyOneAtATime(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, adminID, LabelAddClient)

	errs := make(chan error, 4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- env.onText(newFakeContext(adminID, "x"))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("handler error: %v", err)
		}
	}

	sess := env.bot.sessions.Get(adminID)
	if sess == nil {
		t.Fatal("session gone after partial flow")
	}
	sess.Lock()
	defer sess.Unlock()
	if len(sess.Pending) != 4 {
		t.Fatalf("pending = %v, want 4 remaining fields", sess.Pending)
	}
	d := sess.Draft
	if d.ID != "x" || d.Mesta != "x" || d.Kub != "x" || d.Kg != "x" {
		t.Fatalf("draft torn by concurrent answers: %+v", d)
	}
}
