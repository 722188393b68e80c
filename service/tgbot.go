package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"lottery/logger"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/atomic"
)

// Tgbot pushes draw notifications to the configured admin chats.
type Tgbot struct {
	bot       *telego.Bot
	adminIds  []int64
	isRunning atomic.Bool
}

func NewTgbot(token string, adminIds []int64, opts ...telego.BotOption) (*Tgbot, error) {
	if token == "" {
		return nil, errors.New("empty telegram bot token")
	}
	if len(opts) == 0 {
		opts = []telego.BotOption{telego.WithDiscardLogger()}
	}
	bot, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Tgbot{bot: bot, adminIds: adminIds}, nil
}

func (t *Tgbot) Start() {
	t.isRunning.Store(true)
	logger.Infof("Telegram notifications enabled for %d admins", len(t.adminIds))
}

func (t *Tgbot) Stop() {
	t.isRunning.Store(false)
}

func (t *Tgbot) IsRunning() bool {
	return t.isRunning.Load()
}

// SendMsgToTgbotAdmins sends msg to every admin chat and returns the joined send errors.
func (t *Tgbot) SendMsgToTgbotAdmins(msg string) error {
	if !t.IsRunning() {
		return nil
	}
	var errs []error
	for _, adminId := range t.adminIds {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(adminId), msg))
		cancel()
		if err != nil {
			logger.Warningf("action: notificar_admin | result: fail | chat_id: %d | error: %v", adminId, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifyDraw is a Coordinator OnDraw hook.
func (t *Tgbot) NotifyDraw(result DrawResult) {
	if err := t.SendMsgToTgbotAdmins(FormatDrawMessage(result)); err != nil {
		logger.Warning("draw notification failed:", err)
	}
}

func FormatDrawMessage(result DrawResult) string {
	var sb strings.Builder
	if result.Err != nil {
		fmt.Fprintf(&sb, "Draw %s failed: %v", result.CycleID, result.Err)
		return sb.String()
	}
	fmt.Fprintf(&sb, "Draw %s finished: %d winners", result.CycleID, result.Winners.Count())
	agencies := make([]uint8, 0, len(result.Winners))
	for agency := range result.Winners {
		agencies = append(agencies, agency)
	}
	slices.Sort(agencies)
	for _, agency := range agencies {
		fmt.Fprintf(&sb, "\nAgency %d: %d", agency, len(result.Winners[agency]))
	}
	return sb.String()
}
