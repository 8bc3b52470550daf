package bot

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/taskiq-ai/taskiq-backend/internal/credits"
	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
)

const (
	linkCodeBytes = 6
	linkCodeTTL   = 10 * time.Minute
)

const (
	replyWelcome   = "Welcome to TaskIQ. Link your account with /link <code> from the web app, then send any prompt to get started."
	replyNotLinked = "This chat is not linked to a TaskIQ account yet. Generate a code in the web app and send /link <code>."
	replyLinked    = "Account linked. Send any prompt, or /balance to check your remaining credits."
	replyBadCode   = "That code is invalid or has expired. Generate a new one in the web app."
)

// Service handles Telegram webhook updates: account linking, balance
// queries, and prompt messages that go through the consumption gate.
type Service interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
	CreateLinkCode(ctx context.Context, userID uuid.UUID) (string, error)
}

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByTelegramChat(ctx context.Context, chatID int64) (*models.User, error)
	SetTelegramChat(ctx context.Context, id uuid.UUID, chatID *int64) error
}

type linkStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	TelegramLinkKey(code string) string
}

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ServiceParams groups dependencies for the bot service.
type ServiceParams struct {
	Users   userStore
	Credits credits.Service
	Links   linkStore
	Sender  messageSender
	Logger  *logger.Logger
}

type service struct {
	users   userStore
	credits credits.Service
	links   linkStore
	sender  messageSender
	logg    *logger.Logger
}

// NewService builds the Telegram bot service.
func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if params.Credits == nil {
		return nil, fmt.Errorf("credit service is required")
	}
	if params.Links == nil {
		return nil, fmt.Errorf("link store is required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("message sender is required")
	}
	return &service{
		users:   params.Users,
		credits: params.Credits,
		links:   params.Links,
		sender:  params.Sender,
		logg:    params.Logger,
	}, nil
}

// CreateLinkCode issues a short-lived one-time code the user pastes into the
// chat to bind it to their account.
func (s *service) CreateLinkCode(ctx context.Context, userID uuid.UUID) (string, error) {
	if userID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	bytes := make([]byte, linkCodeBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate link code")
	}
	code := base64.RawURLEncoding.EncodeToString(bytes)
	if err := s.links.Set(ctx, s.links.TelegramLinkKey(code), userID.String(), linkCodeTTL); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store link code")
	}
	return code, nil
}

func (s *service) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}

	chatID := msg.Chat.ID
	if msg.IsCommand() {
		return s.handleCommand(ctx, chatID, msg.Command(), strings.TrimSpace(msg.CommandArguments()))
	}
	return s.handlePrompt(ctx, chatID, text)
}

func (s *service) handleCommand(ctx context.Context, chatID int64, command, args string) error {
	switch command {
	case "start":
		return s.reply(chatID, replyWelcome)
	case "link":
		return s.handleLink(ctx, chatID, args)
	case "balance":
		return s.handleBalance(ctx, chatID)
	default:
		return s.reply(chatID, "Unknown command. Try /balance or just send a prompt.")
	}
}

func (s *service) handleLink(ctx context.Context, chatID int64, code string) error {
	if code == "" {
		return s.reply(chatID, replyBadCode)
	}

	key := s.links.TelegramLinkKey(code)
	raw, err := s.links.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return s.reply(chatID, replyBadCode)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read link code")
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse linked user id")
	}

	if err := s.users.SetTelegramChat(ctx, userID, &chatID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "bind telegram chat")
	}
	// One-time code: consume it regardless of what happens after.
	if err := s.links.Del(ctx, key); err != nil && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("failed to delete link code: %v", err))
	}
	return s.reply(chatID, replyLinked)
}

func (s *service) handleBalance(ctx context.Context, chatID int64) error {
	user, err := s.linkedUser(ctx, chatID)
	if err != nil {
		return err
	}
	if user == nil {
		return s.reply(chatID, replyNotLinked)
	}

	account, err := s.credits.GetAccount(ctx, user.ID)
	if err != nil {
		return err
	}
	return s.reply(chatID, fmt.Sprintf("You have %d of %d credits left today.", account.Remaining(), account.DailyLimit))
}

func (s *service) handlePrompt(ctx context.Context, chatID int64, text string) error {
	user, err := s.linkedUser(ctx, chatID)
	if err != nil {
		return err
	}
	if user == nil {
		return s.reply(chatID, replyNotLinked)
	}

	result, err := s.credits.Consume(ctx, credits.ConsumeInput{
		UserID: user.ID,
		Amount: 1,
		Note:   "telegram prompt",
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeInsufficient {
			return s.reply(chatID, "You are out of credits for today. Upgrade your plan or wait for the daily reset.")
		}
		return err
	}

	return s.reply(chatID, fmt.Sprintf("Got it. %d credits left today.", result.Remaining))
}

func (s *service) linkedUser(ctx context.Context, chatID int64) (*models.User, error) {
	user, err := s.users.FindByTelegramChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup chat link")
	}
	return user, nil
}

func (s *service) reply(chatID int64, text string) error {
	_, err := s.sender.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send telegram message")
	}
	return nil
}
