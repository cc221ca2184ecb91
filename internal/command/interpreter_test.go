package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vi13x/coinbot/internal/audit"
	"github.com/vi13x/coinbot/internal/boost"
	"github.com/vi13x/coinbot/internal/config"
	"github.com/vi13x/coinbot/internal/cooldown"
	"github.com/vi13x/coinbot/internal/domain"
	"github.com/vi13x/coinbot/internal/service"
	"github.com/vi13x/coinbot/internal/shop"
	"github.com/vi13x/coinbot/internal/storage"
)

type fakePlatform struct {
	mu          sync.Mutex
	replies     []string
	sent        []string
	files       []string
	channel     []string
	kicked      []string
	banned      []string
	timeouts    []time.Duration
	cleared     []int
	members     map[domain.UserID]bool
	canModerate bool
}

func (f *fakePlatform) Reply(_ context.Context, _ Message, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, text)
	return nil
}

func (f *fakePlatform) Send(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakePlatform) SendFile(_ context.Context, _ domain.UserID, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, path)
	return nil
}

func (f *fakePlatform) SendToChannel(_ context.Context, ref, text string) error {
	if !strings.HasPrefix(ref, "@") {
		return ErrInvalidChannel
	}
	f.channel = append(f.channel, ref+" "+text)
	return nil
}

func (f *fakePlatform) IsMember(_ context.Context, _ int64, user domain.UserID) (bool, error) {
	return f.members[user], nil
}

func (f *fakePlatform) CanModerate(context.Context, int64) (bool, error) {
	return f.canModerate, nil
}

func (f *fakePlatform) Kick(_ context.Context, _ int64, user domain.UserID, reason string) error {
	f.kicked = append(f.kicked, string(user)+":"+reason)
	return nil
}

func (f *fakePlatform) Ban(_ context.Context, _ int64, user domain.UserID, reason string) error {
	f.banned = append(f.banned, string(user)+":"+reason)
	return nil
}

func (f *fakePlatform) Timeout(_ context.Context, _ int64, _ domain.UserID, d time.Duration, _ string) error {
	f.timeouts = append(f.timeouts, d)
	return nil
}

func (f *fakePlatform) DeleteRecent(_ context.Context, _ int64, _ int, n int) (int, error) {
	f.cleared = append(f.cleared, n)
	return n, nil
}

type fakeAudit struct{ lines map[string][]string }

func (f *fakeAudit) Log(_ context.Context, kind string, _ domain.UserID, text string) {
	f.lines[kind] = append(f.lines[kind], text)
}

type fixedRand struct {
	f float64
	n int
}

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) IntN(n int) int   { return min(r.n, n-1) }

var (
	alice = User{ID: "1", Tag: "@alice"}
	bob   = User{ID: "2", Tag: "@bob"}
	root  = User{ID: "99", Tag: "@root"}
)

type harness struct {
	t     *testing.T
	in    *Interpreter
	plat  *fakePlatform
	audit *fakeAudit
	bank  *service.Bank
	econ  *service.Economy
	now   time.Time
	msgID int
}

type harnessOpts struct {
	tune     func(*config.Economy)
	rng      service.Rand
	payloads shop.PayloadSource
}

func newHarness(t *testing.T, o harnessOpts) *harness {
	t.Helper()
	db, err := storage.OpenFileDB(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{
		t:     t,
		plat:  &fakePlatform{members: map[domain.UserID]bool{}},
		audit: &fakeAudit{lines: map[string][]string{}},
		now:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	tune := config.Defaults()
	tune.ChatReward = 0
	if o.tune != nil {
		o.tune(&tune)
	}
	if o.rng == nil {
		o.rng = fixedRand{f: 0.99}
	}
	h.bank = service.NewBank(db, boost.NewTable(), service.WithClock(func() time.Time { return h.now }))
	h.econ = service.NewEconomy(h.bank, tune, cooldown.NewTracker(), shop.NewCatalog(tune.Shop), o.payloads, o.rng)
	h.in = New(h.econ, h.plat, h.audit, Options{Prefix: "!", Admins: []string{" 99 "}, BotName: "coinbot"})
	return h
}

// say handles one message and returns the reply it produced, if any. Each
// mentioned user's tag is located in text, like an entity.
func (h *harness) say(author User, text string, mentions ...User) string {
	var ms []Mention
	from := 0
	for _, u := range mentions {
		m := Mention{User: u}
		if i := strings.Index(text[from:], u.Tag); i >= 0 {
			m.Start = from + i
			m.End = m.Start + len(u.Tag)
			from = m.End
		}
		ms = append(ms, m)
	}
	return h.handle(Message{Author: author, Text: text, Mentions: ms})
}

// reply handles text sent as a reply to target's message.
func (h *harness) reply(author User, text string, target User) string {
	return h.handle(Message{Author: author, Text: text, Mentions: []Mention{{User: target}}})
}

func (h *harness) handle(msg Message) string {
	h.msgID++
	msg.ID, msg.ChatID = h.msgID, -100
	before := len(h.plat.replies)
	h.in.Handle(context.Background(), msg)
	if len(h.plat.replies) == before {
		return ""
	}
	return h.plat.replies[len(h.plat.replies)-1]
}

func (h *harness) balance(u User) float64 {
	bal, err := h.bank.GetBalance(context.Background(), u.ID)
	require.NoError(h.t, err)
	return bal
}

func (h *harness) fund(u User, coins float64) {
	require.NoError(h.t, h.bank.SetBalance(context.Background(), u.ID, coins))
}

func TestChatRewardRunsOnEveryMessage(t *testing.T) {
	h := newHarness(t, harnessOpts{tune: func(e *config.Economy) { e.ChatReward = 2 }})

	assert.Empty(t, h.say(alice, "hello there"))
	assert.Equal(t, []string{"💬 @alice earned 2 coins (Balance: 2.00)"}, h.audit.lines[audit.KindChat])

	h.say(alice, "!work")
	assert.Len(t, h.audit.lines[audit.KindChat], 1)

	h.now = h.now.Add(time.Minute)
	h.say(alice, "still here")
	assert.Len(t, h.audit.lines[audit.KindChat], 2)
	assert.Equal(t, 2+50+2.0, h.balance(alice))
}

func TestBotAuthorsAndUnknownVerbsAreIgnored(t *testing.T) {
	h := newHarness(t, harnessOpts{tune: func(e *config.Economy) { e.ChatReward = 2 }})

	assert.Empty(t, h.say(User{ID: "7", Tag: "@robot", IsBot: true}, "!balance"))
	assert.Empty(t, h.audit.lines[audit.KindChat])

	assert.Empty(t, h.say(alice, "!dance"))
	assert.Empty(t, h.say(alice, "!"))
	assert.Empty(t, h.say(alice, "!balance@otherbot"))
	assert.Equal(t, "💰 @alice has 2.00 coins, Bank: 0.00", h.say(alice, "!BALANCE@CoinBot"))
}

func TestBalance(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.fund(bob, 12.5)

	assert.Equal(t, "💰 @alice has 0.00 coins, Bank: 0.00", h.say(alice, "!bal"))
	assert.Equal(t, "💰 @bob has 12.50 coins, Bank: 0.00", h.say(alice, "!balance @bob", bob))
	assert.Equal(t, "💰 @bob has 12.50 coins, Bank: 0.00", h.reply(alice, "!balance", bob))
	assert.Equal(t, "❌ Unknown user @ghost", h.say(alice, "!balance @ghost"))
}

func TestPay(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.fund(alice, 100)

	assert.Equal(t, "❌ Usage: !pay @user <amount>", h.say(alice, "!pay 10"))
	assert.Equal(t, "❌ Usage: !pay @user <amount>", h.say(alice, "!pay @bob ten", bob))
	assert.Equal(t, "❌ Usage: !pay @user <amount>", h.say(alice, "!pay @bob -5", bob))
	assert.Equal(t, "❌ You cannot pay yourself.", h.say(alice, "!pay @alice 5", alice))
	assert.Equal(t, "❌ Not enough coins.", h.say(alice, "!pay @bob 101", bob))

	assert.Equal(t, "✅ Paid 40 coins to @bob", h.say(alice, "!pay @bob 40", bob))
	assert.Equal(t, 60.0, h.balance(alice))
	assert.Equal(t, 40.0, h.balance(bob))
	assert.Equal(t, []string{"💰 @alice paid 40 coins to @bob"}, h.audit.lines[audit.KindPay])
}

func TestPayTargetsWithoutUsername(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.fund(alice, 100)
	john := User{ID: "5", Tag: "John Smith"}

	assert.Equal(t, "✅ Paid 40 coins to John Smith", h.say(alice, "!pay John Smith 40", john))
	assert.Equal(t, 40.0, h.balance(john))

	assert.Equal(t, "✅ Paid 25 coins to @bob", h.reply(alice, "!pay 25", bob))
	assert.Equal(t, 25.0, h.balance(bob))
	assert.Equal(t, "❌ Usage: !pay @user <amount>", h.reply(alice, "!pay", bob))
	assert.Equal(t, 35.0, h.balance(alice))
}

func TestParseCutsMentionFromArgs(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	carol := User{ID: "3", Tag: "Carol Ng"}

	req, ok := h.in.parse(Message{Text: "!kick Carol Ng was rude", Mentions: []Mention{{User: carol, Start: 6, End: 14}}})
	require.True(t, ok)
	assert.Equal(t, "kick", req.verb)
	assert.Equal(t, []string{"was", "rude"}, req.args)
	assert.Equal(t, []string{"Carol", "Ng", "was", "rude"}, req.raw)
	assert.Equal(t, &carol, req.target)

	req, ok = h.in.parse(Message{Text: "!timeout 5 spam", Mentions: []Mention{{User: carol}}})
	require.True(t, ok)
	assert.Equal(t, []string{"5", "spam"}, req.args)

	// a span that overlaps the verb is ignored
	req, ok = h.in.parse(Message{Text: "!kick x", Mentions: []Mention{{User: carol, Start: 1, End: 5}}})
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, req.args)
}

func TestDepositWithdraw(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.fund(alice, 100)

	assert.Equal(t, "❌ Usage: !deposit <amount>", h.say(alice, "!deposit 0"))
	assert.Equal(t, "❌ Not enough coins.", h.say(alice, "!deposit 200"))
	assert.Equal(t, "✅ Deposited 100 coins to your bank", h.say(alice, "!deposit 100"))
	assert.Equal(t, "❌ Not enough in bank.", h.say(alice, "!withdraw 101"))
	assert.Equal(t, "✅ Withdrew 100 coins from your bank", h.say(alice, "!withdraw 100"))
	assert.Equal(t, 100.0, h.balance(alice))
	assert.Equal(t, []string{"💰 @alice deposited 100 coins to bank"}, h.audit.lines[audit.KindDeposit])
	assert.Equal(t, []string{"💰 @alice withdrew 100 coins from bank"}, h.audit.lines[audit.KindWithdraw])
}

func TestGambleReplies(t *testing.T) {
	h := newHarness(t, harnessOpts{rng: fixedRand{f: 0.1}})
	h.fund(alice, 60)

	assert.Equal(t, "❌ Bet must be 50-500 coins.", h.say(alice, "!gamble lots"))
	assert.Equal(t, "❌ Bet must be 50-500 coins.", h.say(alice, "!gamble 20"))
	assert.Equal(t, "❌ Not enough coins.", h.say(alice, "!gamble 100"))
	assert.Equal(t, "🎉 You won 100 coins!", h.say(alice, "!gamble 50"))
	assert.Equal(t, 160.0, h.balance(alice))

	h.now = h.now.Add(44*time.Second + 500*time.Millisecond)
	assert.Equal(t, "❌ Wait 1s before gambling.", h.say(alice, "!gamble 50"))
	assert.Equal(t, "❌ Wait 1s before gambling.", h.say(alice, "!gamble nonsense"))

	lose := newHarness(t, harnessOpts{rng: fixedRand{f: 0.5}})
	lose.fund(alice, 60)
	assert.Equal(t, "💀 You lost 50 coins.", lose.say(alice, "!gamble 50"))
	assert.Equal(t, 10.0, lose.balance(alice))
}

func TestWorkReplies(t *testing.T) {
	h := newHarness(t, harnessOpts{rng: fixedRand{n: 7}})

	assert.Equal(t, "💼 You worked and earned 57 coins.", h.say(alice, "!work"))
	assert.Equal(t, "❌ Work cooldown 1 hour.", h.say(alice, "!work"))
	h.now = h.now.Add(time.Hour)
	assert.Equal(t, "💼 You worked and earned 57 coins.", h.say(alice, "!work"))
	assert.Equal(t, 114.0, h.balance(alice))
}

func TestBuyDeliversAndAnnounces(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "zoom"), 0o755))
	payload := filepath.Join(root, "zoom", "zoom.ffx")
	require.NoError(t, os.WriteFile(payload, []byte("x"), 0o644))

	h := newHarness(t, harnessOpts{payloads: shop.DirSource{Root: root, Ext: ".ffx"}})
	h.fund(alice, 500)

	assert.Equal(t, "❌ Provide an item ID.", h.say(alice, "!buy"))
	assert.Equal(t, "❌ Item not found.", h.say(alice, "!buy gpu"))

	assert.Empty(t, h.say(alice, "!buy ZOOM"))
	assert.Equal(t, []string{payload}, h.plat.files)
	assert.Equal(t, "✅ Delivered Zoom Pack to @alice", h.plat.sent[len(h.plat.sent)-1])
	assert.Equal(t, []string{"@alice purchased Zoom Pack for 400 coins."}, h.audit.lines[audit.KindPurchase])
	assert.Equal(t, 100.0, h.balance(alice))

	assert.Equal(t, "❌ Not enough coins.", h.say(alice, "!buy zoom"))

	h.fund(alice, 500)
	h.say(alice, "!buy twixtor")
	assert.Equal(t, "❌ No FFX files to deliver.", h.plat.sent[len(h.plat.sent)-1])
	assert.Zero(t, h.balance(alice))
}

func TestBuyOutOfStock(t *testing.T) {
	h := newHarness(t, harnessOpts{tune: func(e *config.Economy) {
		e.Shop = []domain.ShopItem{{ID: "cc10", Name: "10 CC Pack", Price: 1, Stock: 0}}
	}})
	h.fund(alice, 10)
	h.say(alice, "!buy cc10")
	assert.Equal(t, []string{"❌ 10 CC Pack is out of stock."}, h.plat.sent)
	assert.Equal(t, 10.0, h.balance(alice))
}

func TestMysteryReplies(t *testing.T) {
	h := newHarness(t, harnessOpts{rng: fixedRand{f: 0.5, n: 0}})
	assert.Equal(t, "❌ Not enough coins.", h.say(alice, "!mystery"))
	h.fund(alice, 300)
	assert.Equal(t, "💰 Mystery gave 100 coins.", h.say(alice, "!mystery"))
	assert.Equal(t, 100.0, h.balance(alice))

	item := newHarness(t, harnessOpts{rng: fixedRand{f: 0.01, n: 0}})
	item.fund(alice, 300)
	assert.Equal(t, "🎁 Mystery gave Omino Diffusion", item.say(alice, "!mystery"))
	// no payload folder, so the unit goes back
	it, _ := item.econ.Catalog().Lookup("omino")
	assert.Equal(t, 10, it.Stock)
}

func TestAdminVerbsAreInvisibleToOthers(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	for _, line := range []string{"!give @bob 100", "!giveall 100", "!removeall 1", "!clear 5", "!kick @bob spam"} {
		assert.Empty(t, h.say(alice, line, bob), line)
	}
	assert.Zero(t, h.balance(bob))
	assert.Empty(t, h.plat.cleared)
	assert.Empty(t, h.plat.kicked)
}

func TestAdminLedgerVerbs(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.fund(alice, 10)
	require.NoError(t, h.bank.SetMultiplier(context.Background(), bob.ID, 2))

	assert.Equal(t, "❌ Usage: !give @user <amount>", h.say(root, "!give 100"))
	assert.Equal(t, "✅ Gave 100 coins to @bob", h.say(root, "!give @bob 100", bob))
	assert.Equal(t, 200.0, h.balance(bob))

	assert.Equal(t, "✅ Gave 10 coins to everyone", h.say(root, "!giveall 10"))
	assert.Equal(t, 220.0, h.balance(bob))
	assert.Equal(t, 20.0, h.balance(alice))

	assert.Equal(t, "✅ Removed 50 coins from @alice", h.say(root, "!remove @alice 50", alice))
	assert.Zero(t, h.balance(alice))
	assert.Equal(t, "✅ Removed 20 coins from everyone", h.say(root, "!removeall 20"))
	assert.Equal(t, 200.0, h.balance(bob))

	assert.Equal(t, "✅ Set @alice multiplier to 3", h.say(root, "!multiplier @alice 3", alice))
	assert.Equal(t, "✅ Boosted @alice x2 for 10 minutes", h.say(root, "!boost @alice 2 10", alice))
	h.say(root, "!give @alice 5", alice)
	assert.Equal(t, 30.0, h.balance(alice))

	h.now = h.now.Add(10 * time.Minute)
	h.say(root, "!give @alice 5", alice)
	assert.Equal(t, 45.0, h.balance(alice))
	assert.NotEmpty(t, h.audit.lines[audit.KindAdmin])
}

func TestModeration(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	assert.Equal(t, "❌ Usage: !kick @user <reason>", h.say(root, "!kick"))
	assert.Equal(t, "❌ User not in chat", h.say(root, "!kick @bob spam", bob))
	h.plat.members[bob.ID] = true
	assert.Equal(t, "❌ I cannot kick.", h.say(root, "!kick @bob spam", bob))
	assert.Equal(t, "❌ I cannot ban.", h.say(root, "!ban @bob", bob))

	h.plat.canModerate = true
	assert.Equal(t, "✅ Kicked @bob", h.say(root, "!kick @bob too much spam", bob))
	assert.Equal(t, []string{"2:too much spam"}, h.plat.kicked)
	carol := User{ID: "3", Tag: "Carol Ng"}
	h.plat.members[carol.ID] = true
	assert.Equal(t, "✅ Kicked Carol Ng", h.say(root, "!kick Carol Ng flooding", carol))
	assert.Equal(t, "✅ Kicked @bob", h.reply(root, "!kick off topic", bob))
	assert.Equal(t, []string{"2:too much spam", "3:flooding", "2:off topic"}, h.plat.kicked)
	assert.Equal(t, "✅ Banned @bob", h.say(root, "!ban @bob", bob))
	assert.Equal(t, []string{"2:No reason"}, h.plat.banned)

	assert.Equal(t, "❌ Usage: !timeout @user <minutes> <reason>", h.say(root, "!timeout @bob soon", bob))
	assert.Equal(t, "✅ Timed out @bob for 15 minutes", h.say(root, "!timeout @bob 15 calm down", bob))
	assert.Equal(t, []time.Duration{15 * time.Minute}, h.plat.timeouts)

	assert.Equal(t, "❌ Usage: !clear <1-100>", h.say(root, "!clear all"))
	assert.Equal(t, "✅ Cleared 100 messages", h.say(root, "!clear 500"))
	assert.Equal(t, []int{100}, h.plat.cleared)
}

func TestSendToChannel(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	assert.Equal(t, "❌ Usage: !send @channel <message>", h.say(root, "!send"))
	assert.Equal(t, "❌ Invalid channel.", h.say(root, "!send general hi"))
	assert.Equal(t, "✅ Message sent.", h.say(root, "!send @news hello world"))
	assert.Equal(t, []string{"@news hello world"}, h.plat.channel)
}

func TestBalallChunks(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := context.Background()
	for i := 0; i < 120; i++ {
		id := domain.UserID(fmt.Sprintf("%03d", i))
		require.NoError(t, h.bank.SetBalance(ctx, id, float64(i)))
		require.NoError(t, h.bank.Touch(ctx, id, fmt.Sprintf("user_%03d", i)))
	}

	h.say(alice, "!balall")
	require.Greater(t, len(h.plat.sent), 1)
	assert.True(t, strings.HasPrefix(h.plat.sent[0], "📊 All balances:"))
	total := 0
	for _, chunk := range h.plat.sent {
		assert.LessOrEqual(t, len(chunk), balallChunk+100)
		total += strings.Count(chunk, " coins, Bank: ")
	}
	// alice's own implicit record is created by the chat reward path
	assert.Equal(t, 121, total)
	assert.Contains(t, strings.Join(h.plat.sent, ""), "@user_007: 7.00 coins, Bank: 0.00")
}

func TestHelpListsVerbsWithPrefix(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.say(alice, "!help")
	require.Len(t, h.plat.sent, 1)
	assert.Contains(t, h.plat.sent[0], "!pay @user <amount>")
	assert.Contains(t, h.plat.sent[0], "!timeout @user <minutes> <reason>")
	assert.Equal(t, "2 hours", humanDuration(2*time.Hour))
	assert.Equal(t, "1 minute", humanDuration(time.Minute))
	assert.Equal(t, "45s", humanDuration(45*time.Second))
}
