package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"monitor-shopify/internal/database"
	"monitor-shopify/internal/models"
	"monitor-shopify/internal/monitor"
	"monitor-shopify/internal/scraper"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Store é a parte do banco usada pelos comandos de cadastro
type Store interface {
	AddMonitor(ctx context.Context, m models.Monitor) (int64, error)
	ListMonitorsByDestination(ctx context.Context, destination int64) ([]models.Monitor, error)
	GetMonitor(ctx context.Context, id int64) (*models.Monitor, error)
	RemoveMonitor(ctx context.Context, id int64) error
	CountVariants(ctx context.Context, monitorID int64) (int, error)
}

// Checker executa a verificação imediata de um monitor
type Checker interface {
	ProcessMonitor(ctx context.Context, m models.Monitor) monitor.Outcome
}

// Handlers trata os comandos enviados ao bot
type Handlers struct {
	sender           Sender
	store            Store
	prober           scraper.Prober
	checker          Checker
	authorizedChatID int64
	logger           zerolog.Logger
}

// NewHandlers cria os handlers de comandos.
// Se authorizedChatID for diferente de zero, apenas esse chat pode usar os comandos restritos.
func NewHandlers(sender Sender, store Store, prober scraper.Prober, checker Checker, authorizedChatID int64, logger zerolog.Logger) *Handlers {
	return &Handlers{
		sender:           sender,
		store:            store,
		prober:           prober,
		checker:          checker,
		authorizedChatID: authorizedChatID,
		logger:           logger,
	}
}

// escapeHTML escapa caracteres especiais do HTML
func escapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	text = strings.ReplaceAll(text, `"`, "&quot;")
	return text
}

// SetupCommands recebe as atualizações do Telegram até o contexto ser cancelado
func SetupCommands(ctx context.Context, bot *tgbotapi.BotAPI, h *Handlers) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		bot.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil {
			continue
		}
		h.Handle(ctx, update.Message)
	}
	return nil
}

// Handle trata uma mensagem recebida
func (h *Handlers) Handle(ctx context.Context, message *tgbotapi.Message) {
	if message.Chat == nil || message.Text == "" {
		return
	}

	// Extrair comando (remover @botname se presente e pegar apenas o comando)
	parts := strings.Fields(message.Text)
	if len(parts) == 0 {
		return
	}

	command := strings.ToLower(parts[0])
	if idx := strings.Index(command, "@"); idx > 0 {
		command = command[:idx]
	}

	// Comandos públicos (não precisam de autorização)
	isPublicCommand := command == "/start" || command == "/help"

	if !isPublicCommand && h.authorizedChatID != 0 && message.Chat.ID != h.authorizedChatID {
		h.reply(message.Chat.ID, "Você não está autorizado a usar este bot.")
		return
	}

	switch command {
	case "/start", "/help":
		h.handleHelp(message.Chat.ID)
	case "/add":
		h.handleAddMonitor(ctx, message.Chat.ID, parts[1:])
	case "/list":
		h.handleListMonitors(ctx, message.Chat.ID)
	case "/remove":
		h.handleRemoveMonitor(ctx, message.Chat.ID, parts[1:])
	case "/check":
		h.handleCheckMonitor(ctx, message.Chat.ID, parts[1:])
	default:
		h.reply(message.Chat.ID, "Comando não reconhecido. Use /help para ver os comandos disponíveis.")
	}
}

func (h *Handlers) handleHelp(chatID int64) {
	helpText := `🤖 <b>Monitor de Lojas Shopify</b>

<b>Comandos disponíveis:</b>

<b>/add product &lt;URL&gt;</b> - Monitorar um produto
Exemplo: /add product https://loja.com/products/tenis

<b>/add collection &lt;URL&gt;</b> - Monitorar uma coleção
Exemplo: /add collection https://loja.com/collections/verao

<b>/add search &lt;URL da loja&gt; &lt;busca&gt;</b> - Monitorar uma busca
Exemplo: /add search https://loja.com tênis branco

<b>/list</b> - Listar os monitores deste chat

<b>/remove &lt;id&gt;</b> - Remover um monitor
Exemplo: /remove 1

<b>/check &lt;id&gt;</b> - Verificar um monitor agora
Exemplo: /check 1

<b>/help</b> - Mostrar esta mensagem de ajuda
`

	h.replyHTML(chatID, helpText)
}

func (h *Handlers) handleAddMonitor(ctx context.Context, chatID int64, args []string) {
	const usage = "❌ Formato incorreto.\n\nUso: /add product <URL>\n/add collection <URL>\n/add search <URL da loja> <busca>"
	if len(args) < 2 {
		h.reply(chatID, usage)
		return
	}

	kind, err := models.ParseKind(strings.ToLower(args[0]))
	if err != nil {
		h.reply(chatID, usage)
		return
	}

	url := args[1]
	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
		h.reply(chatID, "❌ URL inválida")
		return
	}

	m := models.Monitor{URL: url, Kind: kind, Destination: chatID}

	switch kind {
	case models.KindProduct:
		if !h.prober.ProbeProduct(ctx, url) {
			h.reply(chatID, "❌ A URL é inválida, ela deve conter /products/.")
			return
		}
	case models.KindCollection:
		if !h.prober.ProbeCollection(ctx, url) {
			h.reply(chatID, "❌ A URL é inválida, ela deve conter /collections/.")
			return
		}
	case models.KindSearch:
		if len(args) < 3 {
			h.reply(chatID, usage)
			return
		}
		if !h.prober.ProbeStorefront(ctx, url) {
			h.reply(chatID, "❌ Este site não é uma loja Shopify")
			return
		}
		m.Query = strings.Join(args[2:], " ")
	}

	id, err := h.store.AddMonitor(ctx, m)
	if err != nil {
		h.logger.Error().Err(err).Str("url", url).Msg("Erro ao cadastrar monitor")
		h.reply(chatID, fmt.Sprintf("❌ Erro ao adicionar monitor: %v", err))
		return
	}

	h.logger.Info().Int64("monitor", id).Str("kind", string(kind)).Str("url", url).Msg("Monitor cadastrado")

	switch kind {
	case models.KindProduct:
		h.reply(chatID, fmt.Sprintf("✅ Monitoramento de produto cadastrado! (ID %d)", id))
	case models.KindCollection:
		h.reply(chatID, fmt.Sprintf("✅ Monitoramento de coleção cadastrado! (ID %d)", id))
	case models.KindSearch:
		h.reply(chatID, fmt.Sprintf("✅ Monitoramento de busca cadastrado! (ID %d)", id))
	}
}

func (h *Handlers) handleListMonitors(ctx context.Context, chatID int64) {
	monitors, err := h.store.ListMonitorsByDestination(ctx, chatID)
	if err != nil {
		h.reply(chatID, fmt.Sprintf("❌ Erro ao listar monitores: %v", err))
		return
	}

	if len(monitors) == 0 {
		h.reply(chatID, "❌ Nenhum monitor encontrado")
		return
	}

	var response strings.Builder
	response.WriteString("📋 <b>Monitores:</b>\n\n")

	for _, m := range monitors {
		count, err := h.store.CountVariants(ctx, m.ID)
		if err != nil {
			h.logger.Error().Err(err).Int64("monitor", m.ID).Msg("Erro ao contar variantes")
		}

		response.WriteString(fmt.Sprintf("🆔 <b>Monitor #%d</b>\n", m.ID))
		response.WriteString(fmt.Sprintf("🔗 %s\n", escapeHTML(m.URL)))
		response.WriteString(fmt.Sprintf("📦 Tipo: %s\n", kindLabel(m.Kind)))
		if m.Query != "" {
			response.WriteString(fmt.Sprintf("🔍 Busca: %s\n", escapeHTML(m.Query)))
		}
		response.WriteString(fmt.Sprintf("🧩 Variantes encontradas: %d\n\n", count))
	}

	h.replyHTML(chatID, response.String())
}

func (h *Handlers) handleRemoveMonitor(ctx context.Context, chatID int64, args []string) {
	m, ok := h.monitorFromArgs(ctx, chatID, args, "/remove")
	if !ok {
		return
	}

	if err := h.store.RemoveMonitor(ctx, m.ID); err != nil {
		h.reply(chatID, fmt.Sprintf("❌ Erro ao remover monitor: %v", err))
		return
	}

	h.logger.Info().Int64("monitor", m.ID).Msg("Monitor removido")
	h.reply(chatID, "✅ Monitor removido")
}

func (h *Handlers) handleCheckMonitor(ctx context.Context, chatID int64, args []string) {
	m, ok := h.monitorFromArgs(ctx, chatID, args, "/check")
	if !ok {
		return
	}

	// Enviar mensagem de "verificando"
	sentMessageID := 0
	if sent, err := h.sender.Send(tgbotapi.NewMessage(chatID, "⏳ Verificando monitor...")); err == nil {
		sentMessageID = sent.MessageID
	}

	outcome := h.checker.ProcessMonitor(ctx, *m)

	var response string
	if outcome.Err != nil {
		response = fmt.Sprintf("❌ Erro ao verificar monitor #%d: %v", m.ID, outcome.Err)
	} else {
		response = fmt.Sprintf("📊 Monitor #%d verificado\n\nProdutos: %d\nNotificações enviadas: %d",
			m.ID, outcome.Products, outcome.Notified)
	}

	if sentMessageID != 0 {
		if _, err := h.sender.Send(tgbotapi.NewEditMessageText(chatID, sentMessageID, response)); err == nil {
			return
		}
	}
	h.reply(chatID, response)
}

// monitorFromArgs lê o ID do comando e busca o monitor do chat
func (h *Handlers) monitorFromArgs(ctx context.Context, chatID int64, args []string, command string) (*models.Monitor, bool) {
	if len(args) < 1 {
		h.reply(chatID, fmt.Sprintf("❌ Formato incorreto.\n\nUso: %s <id>\n\nExemplo: %s 1", command, command))
		return nil, false
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.reply(chatID, "❌ ID inválido.")
		return nil, false
	}

	m, err := h.store.GetMonitor(ctx, id)
	if errors.Is(err, database.ErrNotFound) || (err == nil && m.Destination != chatID) {
		h.reply(chatID, "❌ Monitor não encontrado")
		return nil, false
	}
	if err != nil {
		h.reply(chatID, fmt.Sprintf("❌ Erro ao buscar monitor: %v", err))
		return nil, false
	}

	return m, true
}

func (h *Handlers) reply(chatID int64, text string) {
	if _, err := h.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.logger.Error().Err(err).Int64("chat", chatID).Msg("Erro ao enviar mensagem")
	}
}

func (h *Handlers) replyHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := h.sender.Send(msg); err != nil {
		h.logger.Error().Err(err).Int64("chat", chatID).Msg("Erro ao enviar mensagem com HTML")
		// Tentar enviar sem formatação se houver erro
		if plain, perr := PlainText(text); perr == nil {
			msg.Text = plain
		}
		msg.ParseMode = ""
		if _, err := h.sender.Send(msg); err != nil {
			h.logger.Error().Err(err).Int64("chat", chatID).Msg("Erro ao enviar mensagem sem formatação")
		}
	}
}

func kindLabel(k models.Kind) string {
	switch k {
	case models.KindProduct:
		return "Produto"
	case models.KindCollection:
		return "Coleção"
	case models.KindSearch:
		return "Busca"
	default:
		return string(k)
	}
}
