package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/storebot/internal/draft"
	"github.com/xaenox/storebot/internal/engine"
	"github.com/xaenox/storebot/internal/models"
	"github.com/xaenox/storebot/internal/ratelimit"
	"github.com/xaenox/storebot/internal/tools"
)

// confirmToolFor maps each prepare_* tool to its confirm tool and draft
// type namespace, for wiring inline confirm/cancel buttons.
var confirmToolFor = map[string]struct {
	confirm   string
	draftType string
}{
	"prepare_refund":             {"confirm_refund", tools.DraftRefund},
	"prepare_stock_update":       {"confirm_stock_update", tools.DraftStock},
	"prepare_status_update":      {"confirm_status_update", tools.DraftStatus},
	"prepare_bulk_status_update": {"confirm_bulk_status_update", tools.DraftBulkStatus},
}

// Bot is the Telegram surface: it forwards operator messages to the
// engine and renders staged actions with confirm/cancel buttons.
type Bot struct {
	api        *tgbotapi.BotAPI
	engine     *engine.Engine
	dispatcher *tools.Dispatcher
	drafts     *draft.Manager
	limiter    *ratelimit.Limiter
	logger     *zap.Logger
}

func New(token string, eng *engine.Engine, dispatcher *tools.Dispatcher, drafts *draft.Manager, limiter *ratelimit.Limiter, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:        api,
		engine:     eng,
		dispatcher: dispatcher,
		drafts:     drafts,
		limiter:    limiter,
		logger:     logger,
	}, nil
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			go b.handleCallback(update.CallbackQuery)
		case update.Message != nil:
			go b.handleMessage(update.Message)
		}
	}

	return nil
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()
	userID := message.From.ID

	if !b.limiter.CheckAndIncrement(ctx, userID) {
		retryAfter := b.limiter.RetryAfter(ctx, userID)
		b.reply(message.Chat.ID, fmt.Sprintf("Too many requests. Try again in %d seconds.", retryAfter))
		return
	}

	result := b.engine.Handle(ctx, engine.Request{
		Prompt: message.Text,
		Metadata: engine.Metadata{
			UserID:    userID,
			RequestID: uuid.New().String(),
		},
	})

	if !result.Success {
		b.logger.Warn("instruction failed",
			zap.Int64("user_id", userID),
			zap.String("code", result.Error.Code))
		b.reply(message.Chat.ID, result.Error.Message)
		return
	}

	text := result.Data.Message
	if text == "" {
		text = "Done."
	}
	msg := tgbotapi.NewMessage(message.Chat.ID, text)

	// A staged action gets confirm/cancel buttons for its draft.
	if prepared, draftType, ok := stagedDraft(result.Data.ToolResults); ok {
		msg.Text = fmt.Sprintf("%s\n\n%s\nExpires in %d minutes.", text, prepared.Preview, prepared.ExpiresInSeconds/60)
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Confirm", "confirm|"+draftType+"|"+prepared.DraftID),
				tgbotapi.NewInlineKeyboardButtonData("Cancel", "cancel|"+draftType+"|"+prepared.DraftID),
			),
		)
	}

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send message", zap.Error(err))
	}
}

func (b *Bot) handleCallback(query *tgbotapi.CallbackQuery) {
	ctx := context.Background()

	parts := strings.SplitN(query.Data, "|", 3)
	if len(parts) != 3 {
		return
	}
	action, draftType, draftID := parts[0], parts[1], parts[2]

	var text string
	switch action {
	case "confirm":
		text = b.confirm(ctx, draftType, draftID)
	case "cancel":
		if found, err := b.drafts.Cancel(ctx, draftType, draftID); err != nil || !found {
			text = "Nothing to cancel; the draft already expired."
		} else {
			text = "Cancelled. Nothing was changed."
		}
	default:
		return
	}

	callback := tgbotapi.NewCallback(query.ID, text)
	if _, err := b.api.Request(callback); err != nil {
		b.logger.Error("failed to answer callback", zap.Error(err))
	}
	if chatID, ok := callbackChatID(query); ok {
		b.reply(chatID, text)
	}
}

// callbackChatID resolves the chat to reply in. Telegram omits Message on
// callbacks for inaccessible or too-old messages; the callback answer is
// then the only feedback channel.
func callbackChatID(query *tgbotapi.CallbackQuery) (int64, bool) {
	if query.Message == nil || query.Message.Chat == nil {
		return 0, false
	}
	return query.Message.Chat.ID, true
}

// confirm dispatches the confirm_* tool for the draft type, going through
// the dispatcher so schema validation and error shaping stay uniform.
func (b *Bot) confirm(ctx context.Context, draftType, draftID string) string {
	var confirmTool string
	for _, entry := range confirmToolFor {
		if entry.draftType == draftType {
			confirmTool = entry.confirm
			break
		}
	}
	if confirmTool == "" {
		return "Unknown action."
	}

	result := b.dispatcher.Dispatch(ctx, models.ToolCall{
		Name:      confirmTool,
		Arguments: fmt.Sprintf(`{"draft_id": %q}`, draftID),
	})
	if !result.Success {
		if result.Code == tools.CodeDraftExpired {
			return "This action expired or was already applied. Ask me to prepare it again."
		}
		return "Could not apply the action: " + result.Message
	}
	return "Applied."
}

func stagedDraft(results []models.ToolResult) (tools.Prepared, string, bool) {
	for _, r := range results {
		if !r.Success {
			continue
		}
		entry, ok := confirmToolFor[r.Tool]
		if !ok {
			continue
		}
		if prepared, ok := r.Data.(tools.Prepared); ok {
			return prepared, entry.draftType, true
		}
	}
	return tools.Prepared{}, "", false
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("failed to send message", zap.Error(err))
	}
}
