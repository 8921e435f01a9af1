package bot

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"monitor-shopify/internal/models"

	"github.com/PuerkitoBio/goquery"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Notifier envia as mudanças detectadas para o chat do monitor
type Notifier struct {
	sender Sender
	logger zerolog.Logger
}

// NewNotifier cria um novo Notifier
func NewNotifier(sender Sender, logger zerolog.Logger) *Notifier {
	return &Notifier{sender: sender, logger: logger}
}

// Notify envia a mensagem em HTML; se o Telegram recusar, reenvia como texto simples
func (n *Notifier) Notify(_ context.Context, m models.Monitor, p models.Product, c models.Classification) error {
	text := RenderProduct(m, p, c)

	msg := tgbotapi.NewMessage(m.Destination, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := n.sender.Send(msg)
	if err == nil {
		return nil
	}
	n.logger.Warn().Err(err).Int64("monitor", m.ID).Msg("Erro ao enviar mensagem formatada, tentando sem formatação")

	plain, err := PlainText(text)
	if err != nil {
		return fmt.Errorf("erro ao converter mensagem: %w", err)
	}
	msg.Text = plain
	msg.ParseMode = ""
	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("erro ao enviar mensagem para o chat %d: %w", m.Destination, err)
	}
	return nil
}

// RenderProduct monta a mensagem HTML de um produto novo ou atualizado.
// Variantes indisponíveis não são listadas.
func RenderProduct(m models.Monitor, p models.Product, c models.Classification) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<b><a href=\"%s\">%s</a></b>\n", escapeHTML(p.URL), escapeHTML(p.Title))
	if host := hostname(m.URL); host != "" {
		fmt.Fprintf(&b, "🏬 <a href=\"%s\">%s</a>\n", escapeHTML(m.URL), escapeHTML(host))
	}
	fmt.Fprintf(&b, "Marca: %s\n", escapeHTML(p.Brand))
	fmt.Fprintf(&b, "Tipo: %s\n", escapeHTML(p.Category))

	variants := lo.Filter(p.Variants, func(v models.Variant, _ int) bool {
		return v.Available != models.Unavailable
	})
	for _, v := range variants {
		available := "N/A"
		if v.Available == models.Available {
			available = "Sim"
		}
		fmt.Fprintf(&b, "\n<b><u>%s</u></b>\nPreço: <b>%s</b>\nDisponível: <b>%s</b>\n",
			escapeHTML(v.Title), v.Price.StringFixed(2), available)
	}

	if p.Image != "" {
		fmt.Fprintf(&b, "\n🖼 <a href=\"%s\">Imagem</a>\n", escapeHTML(p.Image))
	}

	b.WriteString("\n")
	b.WriteString(footer(m.Kind, c))

	return b.String()
}

// PlainText remove as tags HTML da mensagem
func PlainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	return doc.Text(), nil
}

func footer(kind models.Kind, c models.Classification) string {
	var parts []string

	switch c {
	case models.New:
		parts = append(parts, "🆕 Novo produto")
	case models.Updated:
		parts = append(parts, "🔄 Produto atualizado")
	}

	switch kind {
	case models.KindCollection:
		parts = append(parts, "📦 Monitoramento de coleção")
	case models.KindProduct:
		parts = append(parts, "📦 Monitoramento de produto")
	case models.KindSearch:
		parts = append(parts, "🔍 Monitoramento de busca")
	}

	return strings.Join(parts, " | ")
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
