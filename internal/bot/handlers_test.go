package bot_test

import (
	"context"
	"testing"

	"monitor-shopify/internal/bot"
	"monitor-shopify/internal/database"
	"monitor-shopify/internal/models"
	"monitor-shopify/internal/monitor"
	"monitor-shopify/internal/scraper"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatID = int64(42)

func testLogger() zerolog.Logger { return zerolog.Nop() }

type memMonitors struct {
	monitors map[int64]models.Monitor
	variants map[int64]int
	nextID   int64
}

func newMemMonitors() *memMonitors {
	return &memMonitors{monitors: map[int64]models.Monitor{}, variants: map[int64]int{}}
}

func (s *memMonitors) AddMonitor(_ context.Context, m models.Monitor) (int64, error) {
	s.nextID++
	m.ID = s.nextID
	s.monitors[m.ID] = m
	return m.ID, nil
}

func (s *memMonitors) ListMonitorsByDestination(_ context.Context, destination int64) ([]models.Monitor, error) {
	var out []models.Monitor
	for id := int64(1); id <= s.nextID; id++ {
		if m, ok := s.monitors[id]; ok && m.Destination == destination {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memMonitors) GetMonitor(_ context.Context, id int64) (*models.Monitor, error) {
	m, ok := s.monitors[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &m, nil
}

func (s *memMonitors) RemoveMonitor(_ context.Context, id int64) error {
	if _, ok := s.monitors[id]; !ok {
		return database.ErrNotFound
	}
	delete(s.monitors, id)
	delete(s.variants, id)
	return nil
}

func (s *memMonitors) CountVariants(_ context.Context, monitorID int64) (int, error) {
	return s.variants[monitorID], nil
}

type fakeProber struct {
	storefront, collection, product bool
	calls                           int
}

func (p *fakeProber) ProbeStorefront(context.Context, string) bool { p.calls++; return p.storefront }
func (p *fakeProber) ProbeCollection(context.Context, string) bool { p.calls++; return p.collection }
func (p *fakeProber) ProbeProduct(context.Context, string) bool    { p.calls++; return p.product }

var _ scraper.Prober = (*fakeProber)(nil)

type fakeChecker struct {
	checked []int64
	outcome monitor.Outcome
}

func (c *fakeChecker) ProcessMonitor(_ context.Context, m models.Monitor) monitor.Outcome {
	c.checked = append(c.checked, m.ID)
	out := c.outcome
	out.Monitor = m
	return out
}

type fixture struct {
	sender  *fakeSender
	store   *memMonitors
	prober  *fakeProber
	checker *fakeChecker
	h       *bot.Handlers
}

func newFixture(authorized int64) *fixture {
	f := &fixture{
		sender:  &fakeSender{},
		store:   newMemMonitors(),
		prober:  &fakeProber{storefront: true, collection: true, product: true},
		checker: &fakeChecker{},
	}
	f.h = bot.NewHandlers(f.sender, f.store, f.prober, f.checker, authorized, testLogger())
	return f
}

func (f *fixture) send(chat int64, text string) {
	f.h.Handle(context.Background(), &tgbotapi.Message{Text: text, Chat: &tgbotapi.Chat{ID: chat}})
}

func (f *fixture) lastText(t *testing.T) string {
	t.Helper()

	require.NotEmpty(t, f.sender.sent)
	switch c := f.sender.sent[len(f.sender.sent)-1].(type) {
	case tgbotapi.MessageConfig:
		return c.Text
	case tgbotapi.EditMessageTextConfig:
		return c.Text
	default:
		t.Fatalf("unexpected chattable %T", c)
		return ""
	}
}

func TestAddMonitor(t *testing.T) {
	tests := map[string]struct {
		text      string
		wantKind  models.Kind
		wantURL   string
		wantQuery string
		wantReply string
	}{
		"product": {
			text:      "/add product https://store.example/products/shoe",
			wantKind:  models.KindProduct,
			wantURL:   "https://store.example/products/shoe",
			wantReply: "✅ Monitoramento de produto cadastrado! (ID 1)",
		},
		"collection": {
			text:      "/add@ShopBot collection https://store.example/collections/verao",
			wantKind:  models.KindCollection,
			wantURL:   "https://store.example/collections/verao",
			wantReply: "✅ Monitoramento de coleção cadastrado! (ID 1)",
		},
		"search with multi word query": {
			text:      "/add search https://store.example tênis branco",
			wantKind:  models.KindSearch,
			wantURL:   "https://store.example",
			wantQuery: "tênis branco",
			wantReply: "✅ Monitoramento de busca cadastrado! (ID 1)",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(0)

			f.send(chatID, tt.text)

			require.Len(t, f.store.monitors, 1)
			m := f.store.monitors[1]
			assert.Equal(t, tt.wantKind, m.Kind)
			assert.Equal(t, tt.wantURL, m.URL)
			assert.Equal(t, tt.wantQuery, m.Query)
			assert.Equal(t, chatID, m.Destination)
			assert.Equal(t, tt.wantReply, f.lastText(t))
		})
	}
}

func TestAddMonitorRejected(t *testing.T) {
	tests := map[string]struct {
		text      string
		prober    fakeProber
		wantReply string
		wantProbe bool
	}{
		"missing url": {
			text:      "/add product",
			wantReply: "❌ Formato incorreto.",
		},
		"unknown kind": {
			text:      "/add wishlist https://store.example",
			wantReply: "❌ Formato incorreto.",
		},
		"not http": {
			text:      "/add product store.example/products/shoe",
			wantReply: "❌ URL inválida",
		},
		"invalid product": {
			text:      "/add product https://store.example/pages/about",
			prober:    fakeProber{storefront: true, collection: true},
			wantReply: "❌ A URL é inválida, ela deve conter /products/.",
			wantProbe: true,
		},
		"invalid collection": {
			text:      "/add collection https://store.example/products/shoe",
			prober:    fakeProber{storefront: true, product: true},
			wantReply: "❌ A URL é inválida, ela deve conter /collections/.",
			wantProbe: true,
		},
		"search without query": {
			text:      "/add search https://store.example",
			wantReply: "❌ Formato incorreto.",
		},
		"not shopify": {
			text:      "/add search https://blog.example meia",
			wantReply: "❌ Este site não é uma loja Shopify",
			wantProbe: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(0)
			*f.prober = tt.prober

			f.send(chatID, tt.text)

			assert.Empty(t, f.store.monitors)
			assert.Contains(t, f.lastText(t), tt.wantReply)
			assert.Equal(t, tt.wantProbe, f.prober.calls > 0)
		})
	}
}

func TestListMonitors(t *testing.T) {
	f := newFixture(0)
	ctx := context.Background()
	id, _ := f.store.AddMonitor(ctx, models.Monitor{URL: "https://store.example/products/shoe", Kind: models.KindProduct, Destination: chatID})
	f.store.AddMonitor(ctx, models.Monitor{URL: "https://store.example", Kind: models.KindSearch, Query: "meia", Destination: chatID})
	f.store.AddMonitor(ctx, models.Monitor{URL: "https://other.example/products/x", Kind: models.KindProduct, Destination: 7})
	f.store.variants[id] = 4

	f.send(chatID, "/list")

	msgs := f.sender.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, tgbotapi.ModeHTML, msgs[0].ParseMode)
	assert.Contains(t, msgs[0].Text, "Monitor #1")
	assert.Contains(t, msgs[0].Text, "Variantes encontradas: 4")
	assert.Contains(t, msgs[0].Text, "Monitor #2")
	assert.Contains(t, msgs[0].Text, "Busca: meia")
	assert.NotContains(t, msgs[0].Text, "other.example", "monitors of other chats are not listed")
}

func TestListMonitorsEmpty(t *testing.T) {
	f := newFixture(0)

	f.send(chatID, "/list")

	assert.Equal(t, "❌ Nenhum monitor encontrado", f.lastText(t))
}

func TestRemoveMonitor(t *testing.T) {
	f := newFixture(0)
	ctx := context.Background()
	mine, _ := f.store.AddMonitor(ctx, models.Monitor{URL: "https://store.example/products/shoe", Kind: models.KindProduct, Destination: chatID})
	theirs, _ := f.store.AddMonitor(ctx, models.Monitor{URL: "https://store.example/products/hat", Kind: models.KindProduct, Destination: 7})

	f.send(chatID, "/remove 99")
	assert.Equal(t, "❌ Monitor não encontrado", f.lastText(t))

	f.send(chatID, "/remove abc")
	assert.Equal(t, "❌ ID inválido.", f.lastText(t))

	f.send(chatID, "/remove")
	assert.Contains(t, f.lastText(t), "Uso: /remove <id>")

	f.send(chatID, "/remove 2")
	assert.Equal(t, "❌ Monitor não encontrado", f.lastText(t))
	assert.Contains(t, f.store.monitors, theirs)

	f.send(chatID, "/remove 1")
	assert.Equal(t, "✅ Monitor removido", f.lastText(t))
	assert.NotContains(t, f.store.monitors, mine)
}

func TestCheckMonitor(t *testing.T) {
	f := newFixture(0)
	id, _ := f.store.AddMonitor(context.Background(), models.Monitor{URL: "https://store.example/products/shoe", Kind: models.KindProduct, Destination: chatID})
	f.checker.outcome = monitor.Outcome{Products: 1, Notified: 1}

	f.send(chatID, "/check 1")

	assert.Equal(t, []int64{id}, f.checker.checked)
	require.Len(t, f.sender.sent, 2)
	edit, ok := f.sender.sent[1].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok, "result should replace the waiting message")
	assert.Equal(t, 1, edit.MessageID)
	assert.Contains(t, edit.Text, "Monitor #1 verificado")
	assert.Contains(t, edit.Text, "Notificações enviadas: 1")
}

func TestCheckMonitorError(t *testing.T) {
	f := newFixture(0)
	f.store.AddMonitor(context.Background(), models.Monitor{URL: "https://store.example/products/shoe", Kind: models.KindProduct, Destination: chatID})
	f.checker.outcome = monitor.Outcome{Err: &scraper.FetchError{URL: "https://store.example/products/shoe.js", Err: scraper.ErrStatusNotOK}}

	f.send(chatID, "/check 1")

	assert.Contains(t, f.lastText(t), "❌ Erro ao verificar monitor #1")
}

func TestAuthorization(t *testing.T) {
	f := newFixture(chatID)

	f.send(7, "/list")
	assert.Equal(t, "Você não está autorizado a usar este bot.", f.lastText(t))

	f.send(7, "/help")
	assert.Contains(t, f.lastText(t), "Monitor de Lojas Shopify")

	f.send(chatID, "/list")
	assert.Equal(t, "❌ Nenhum monitor encontrado", f.lastText(t))
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(0)

	f.send(chatID, "/price")
	assert.Contains(t, f.lastText(t), "Comando não reconhecido")

	f.send(chatID, "   ")
	assert.Len(t, f.sender.sent, 1, "blank messages are ignored")
}
