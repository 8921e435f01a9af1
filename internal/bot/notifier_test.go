package bot_test

import (
	"context"
	"errors"
	"testing"

	"monitor-shopify/internal/bot"
	"monitor-shopify/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender guarda as mensagens enviadas e pode falhar nas primeiras chamadas
type fakeSender struct {
	sent     []tgbotapi.Chattable
	failures int
	nextID   int
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.sent = append(s.sent, c)
	if s.failures > 0 {
		s.failures--
		return tgbotapi.Message{}, errors.New("Bad Request: can't parse entities")
	}
	s.nextID++
	return tgbotapi.Message{MessageID: s.nextID}, nil
}

func (s *fakeSender) messages(t *testing.T) []tgbotapi.MessageConfig {
	t.Helper()

	var msgs []tgbotapi.MessageConfig
	for _, c := range s.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

var (
	sampleMonitor = models.Monitor{ID: 3, URL: "https://store.example/collections/verao", Kind: models.KindCollection, Destination: 42}
	sampleProduct = models.Product{
		ID:       101,
		Title:    "Tênis <Corrida> & Cia",
		URL:      "https://store.example/products/shoe",
		Brand:    "Acme",
		Category: "Calçados",
		Image:    "https://cdn.example/shoe.jpg",
		Variants: []models.Variant{
			{ID: 1, Title: "38", Price: decimal.RequireFromString("29.9"), Available: models.Available},
			{ID: 2, Title: "39", Price: decimal.RequireFromString("31"), Available: models.Unavailable},
			{ID: 3, Title: "40", Price: decimal.RequireFromString("32.5"), Available: models.Unknown},
		},
	}
)

func TestRenderProduct(t *testing.T) {
	text := bot.RenderProduct(sampleMonitor, sampleProduct, models.New)

	assert.Contains(t, text, `<a href="https://store.example/products/shoe">Tênis &lt;Corrida&gt; &amp; Cia</a>`)
	assert.Contains(t, text, "store.example")
	assert.Contains(t, text, "Marca: Acme")
	assert.Contains(t, text, "Tipo: Calçados")
	assert.Contains(t, text, "<u>38</u>")
	assert.Contains(t, text, "Preço: <b>29.90</b>")
	assert.Contains(t, text, "Disponível: <b>Sim</b>")
	assert.NotContains(t, text, "<u>39</u>", "unavailable variants are not listed")
	assert.Contains(t, text, "<u>40</u>")
	assert.Contains(t, text, "Disponível: <b>N/A</b>")
	assert.Contains(t, text, "https://cdn.example/shoe.jpg")
	assert.Contains(t, text, "🆕 Novo produto | 📦 Monitoramento de coleção")
}

func TestRenderProductFooter(t *testing.T) {
	tests := map[string]struct {
		kind           models.Kind
		classification models.Classification
		want           string
	}{
		"new product":     {kind: models.KindProduct, classification: models.New, want: "🆕 Novo produto | 📦 Monitoramento de produto"},
		"updated search":  {kind: models.KindSearch, classification: models.Updated, want: "🔄 Produto atualizado | 🔍 Monitoramento de busca"},
		"updated product": {kind: models.KindProduct, classification: models.Updated, want: "🔄 Produto atualizado | 📦 Monitoramento de produto"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			m := sampleMonitor
			m.Kind = tt.kind
			assert.Contains(t, bot.RenderProduct(m, sampleProduct, tt.classification), tt.want)
		})
	}
}

func TestPlainText(t *testing.T) {
	plain, err := bot.PlainText(`<b><a href="x">Tênis &amp; Cia</a></b>` + "\nPreço: <b>10.00</b>")
	require.NoError(t, err)
	assert.Equal(t, "Tênis & Cia\nPreço: 10.00", plain)
}

func TestNotify(t *testing.T) {
	sender := &fakeSender{}
	n := bot.NewNotifier(sender, testLogger())

	require.NoError(t, n.Notify(context.Background(), sampleMonitor, sampleProduct, models.Updated))

	msgs := sender.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(42), msgs[0].ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msgs[0].ParseMode)
	assert.Contains(t, msgs[0].Text, "🔄 Produto atualizado")
}

func TestNotifyFallsBackToPlainText(t *testing.T) {
	sender := &fakeSender{failures: 1}
	n := bot.NewNotifier(sender, testLogger())

	require.NoError(t, n.Notify(context.Background(), sampleMonitor, sampleProduct, models.New))

	msgs := sender.messages(t)
	require.Len(t, msgs, 2)
	assert.Empty(t, msgs[1].ParseMode)
	assert.NotContains(t, msgs[1].Text, "<b>")
	assert.Contains(t, msgs[1].Text, "Tênis <Corrida> & Cia")
}

func TestNotifyError(t *testing.T) {
	sender := &fakeSender{failures: 2}
	n := bot.NewNotifier(sender, testLogger())

	assert.Error(t, n.Notify(context.Background(), sampleMonitor, sampleProduct, models.New))
}
