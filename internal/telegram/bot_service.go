// Package telegram handles the integration with the Telegram Bot API.
// It receives updates, drives the intake conversation, routes decision
// callbacks from the supervisory group and sends the scheduled reports.
package telegram

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"shikoyatbot/bot/internal/complaint"
	"shikoyatbot/bot/internal/config"
	"shikoyatbot/bot/internal/report"
	"shikoyatbot/bot/internal/session"
	"shikoyatbot/bot/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

const byEmployeePageSize = 10

// BotService is responsible for receiving Telegram updates and routing
// them to the complaint lifecycle and reporting services.
type BotService struct {
	BotAPI       *tgbotapi.BotAPI
	Storage      storage.Storage
	ComplaintSvc *complaint.Service
	Reporter     *report.Reporter
	Sessions     *session.Store
	Cfg          *config.Configuration

	now func() time.Time
}

// NewBotService creates a new BotService instance.
func NewBotService(cfg *config.Configuration, s storage.Storage, svc *complaint.Service, rep *report.Reporter, sessions *session.Store) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return nil, err
	}
	bot.Debug = cfg.BotDebug()
	log.Infof("✅ authorized on account %s", bot.Self.UserName)

	loc := cfg.Location()
	return &BotService{
		BotAPI:       bot,
		Storage:      s,
		ComplaintSvc: svc,
		Reporter:     rep,
		Sessions:     sessions,
		Cfg:          cfg,
		now:          func() time.Time { return time.Now().In(loc) },
	}, nil
}

// Run is the main loop for receiving Telegram updates.
func (s *BotService) Run() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)

	for update := range updates {
		switch {
		case update.Message != nil:
			s.handleMessage(update.Message)
		case update.CallbackQuery != nil:
			s.handleCallbackQuery(update.CallbackQuery)
		}
	}
}

func (s *BotService) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	if msg.IsCommand() {
		s.handleCommand(msg)
		return
	}
	if !msg.Chat.IsPrivate() {
		return
	}
	if _, ok := s.Sessions.Get(msg.From.ID); ok {
		s.handleComplaintText(msg)
		return
	}
	// Stray text with no pending intake is ignored.
}

func (s *BotService) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		s.handleStart(msg)
	case "help":
		text := msgHelp
		if s.adminAllowed(msg) {
			text += "\n" + msgAdminHelp
		}
		s.reply(msg.Chat.ID, text)
	case "chatid":
		s.reply(msg.Chat.ID, fmt.Sprintf("✅ Chat ID: <code>%d</code>\nType: <b>%s</b>", msg.Chat.ID, msg.Chat.Type))
	case "whoami":
		s.handleWhoami(msg)
	case "ping":
		if s.Cfg.TestMode() {
			s.reply(msg.Chat.ID, "pong 🏓")
		}
	case "stats":
		s.requireAdmin(msg, s.handleStats)
	case "open":
		s.requireAdmin(msg, s.handleOpenList)
	case "byemp":
		s.requireAdmin(msg, s.handleByEmployee)
	case "delete":
		s.requireAdmin(msg, s.handleDelete)
	case "reset":
		s.requireAdmin(msg, s.handleReset)
	}
}

// adminAllowed gates administrative commands. Under the allowlist policy
// only listed ids qualify; under "anyone" the command must come from the
// supervisory group itself.
func (s *BotService) adminAllowed(msg *tgbotapi.Message) bool {
	if s.Cfg.Reviewers.Policy == "allowlist" {
		return s.Cfg.ReviewerAllowed(msg.From.ID)
	}
	return msg.Chat.ID == s.Cfg.Group.ChatID
}

func (s *BotService) requireAdmin(msg *tgbotapi.Message, handler func(*tgbotapi.Message)) {
	if !s.adminAllowed(msg) {
		s.reply(msg.Chat.ID, msgNoPermission)
		return
	}
	handler(msg)
}

func (s *BotService) handleStart(msg *tgbotapi.Message) {
	if !msg.Chat.IsPrivate() {
		s.reply(msg.Chat.ID, msgGroupStart)
		return
	}
	reply := tgbotapi.NewMessage(msg.Chat.ID, msgGreeting)
	reply.ParseMode = tgbotapi.ModeHTML
	reply.ReplyMarkup = employeesKeyboard(s.Cfg.Employees)
	if _, err := s.BotAPI.Send(reply); err != nil {
		log.WithError(err).Errorf("failed to send roster keyboard to chat %d", msg.Chat.ID)
	}
}

func (s *BotService) handleWhoami(msg *tgbotapi.Message) {
	role := "фойдаланувчи"
	if s.adminAllowed(msg) {
		role = "раҳбар (кўриб чиқувчи)"
	}
	s.reply(msg.Chat.ID, fmt.Sprintf("👤 %s\nID: <code>%d</code>\nРоль: %s",
		userTag(msg.From.ID, msg.From.UserName), msg.From.ID, role))
}

// handleComplaintText finishes the intake conversation: the employee was
// already picked, this message is the complaint description.
func (s *BotService) handleComplaintText(msg *tgbotapi.Message) {
	sess, ok := s.Sessions.Get(msg.From.ID)
	if !ok {
		return
	}
	reporter := complaint.Identity{ID: msg.From.ID, Handle: msg.From.UserName}

	c, err := s.ComplaintSvc.Create(reporter, sess.Employee, msg.Text)
	switch {
	case errors.Is(err, complaint.ErrTextTooShort):
		// Session is kept so the user can just retype.
		s.reply(msg.Chat.ID, renderTextTooShort(s.Cfg.Intake.MinTextLen))
		return
	case errors.Is(err, complaint.ErrUnknownEmployee):
		// Roster changed mid-conversation; restart the flow.
		s.Sessions.Delete(msg.From.ID)
		s.handleStart(msg)
		return
	case err != nil:
		log.WithError(err).Errorf("failed to create complaint for user %d", msg.From.ID)
		s.reply(msg.Chat.ID, msgInternal)
		return
	}

	s.Sessions.Delete(msg.From.ID)
	s.relayComplaint(c.ID)
	s.reply(msg.Chat.ID, msgAccepted)
}

// relayComplaint posts the new complaint to the supervisory group with
// decision controls and remembers the message reference. A delivery
// failure is logged and never affects the stored record.
func (s *BotService) relayComplaint(complaintID uint) {
	c, err := s.Storage.GetComplaintByID(complaintID)
	if err != nil || c == nil {
		log.WithError(err).Errorf("failed to load complaint %d for relay", complaintID)
		return
	}

	m := tgbotapi.NewMessage(s.Cfg.Group.ChatID, s.groupText(renderRelay(c)))
	m.ParseMode = tgbotapi.ModeHTML
	m.ReplyMarkup = decisionKeyboard(c.ID)
	sent, err := s.BotAPI.Send(m)
	if err != nil {
		log.WithError(err).Errorf("failed to relay complaint %d to group", c.ID)
		return
	}
	if err := s.Storage.SetRelayRef(c.ID, sent.Chat.ID, sent.MessageID); err != nil {
		log.WithError(err).Errorf("failed to store relay ref for complaint %d", c.ID)
	}
}

func (s *BotService) handleCallbackQuery(cb *tgbotapi.CallbackQuery) {
	switch {
	case strings.HasPrefix(cb.Data, "emp:"):
		s.handleEmployeeCallback(cb)
	case strings.HasPrefix(cb.Data, "close:"):
		s.handleCloseCallback(cb)
	default:
		s.answer(cb.ID, "")
	}
}

func (s *BotService) handleEmployeeCallback(cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || !cb.Message.Chat.IsPrivate() {
		s.alert(cb.ID, msgPrivateOnly)
		return
	}
	idx, err := parseEmployeeCallback(cb.Data)
	if err != nil || idx < 0 || idx >= len(s.Cfg.Employees) {
		s.alert(cb.ID, msgBadChoice)
		return
	}
	employee := s.Cfg.Employees[idx]
	s.Sessions.Put(cb.From.ID, employee)

	edit := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, renderPromptText(employee))
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := s.BotAPI.Send(edit); err != nil {
		log.WithError(err).Errorf("failed to edit roster prompt in chat %d", cb.Message.Chat.ID)
	}
	s.answer(cb.ID, "")
}

// handleCloseCallback is the review flow: an authorized reviewer presses
// a decision button under the relayed notification.
func (s *BotService) handleCloseCallback(cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat.ID != s.Cfg.Group.ChatID {
		s.alert(cb.ID, msgGroupOnly)
		return
	}
	if !s.Cfg.ReviewerAllowed(cb.From.ID) {
		s.alert(cb.ID, msgNoPermission)
		return
	}

	complaintID, outcome, err := parseCloseCallback(cb.Data)
	if err != nil {
		s.alert(cb.ID, msgBadOutcome)
		return
	}

	reviewer := complaint.Identity{ID: cb.From.ID, Handle: cb.From.UserName}
	c, err := s.ComplaintSvc.Decide(complaintID, outcome, reviewer)
	switch {
	case errors.Is(err, complaint.ErrAlreadyDecided):
		s.alert(cb.ID, msgAlreadyDone)
		return
	case errors.Is(err, complaint.ErrNotFound):
		s.alert(cb.ID, msgNotFound)
		return
	case errors.Is(err, complaint.ErrBadOutcome):
		s.alert(cb.ID, msgBadOutcome)
		return
	case err != nil:
		log.WithError(err).Errorf("failed to decide complaint %d", complaintID)
		s.alert(cb.ID, msgInternal)
		return
	}

	// The decision is committed; everything below is best-effort delivery.
	edit := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, s.groupText(renderRelay(c)))
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := s.BotAPI.Send(edit); err != nil {
		log.WithError(err).Errorf("failed to update relay message for complaint %d", c.ID)
	}

	notice := tgbotapi.NewMessage(c.ReporterID, renderOutcomeNotice(c))
	notice.ParseMode = tgbotapi.ModeHTML
	if _, err := s.BotAPI.Send(notice); err != nil {
		log.WithError(err).Errorf("failed to notify reporter %d about complaint %d", c.ReporterID, c.ID)
	}

	s.answer(cb.ID, msgClosed)
}

func (s *BotService) handleStats(msg *tgbotapi.Message) {
	now := s.now()
	d, err := s.Reporter.DailyDigest(now)
	if err != nil {
		log.WithError(err).Error("failed to build digest for /stats")
		s.reply(msg.Chat.ID, msgInternal)
		return
	}
	s.reply(msg.Chat.ID, renderDigest(d, now.Format("15:04")))
}

func (s *BotService) handleOpenList(msg *tgbotapi.Message) {
	list, err := s.Storage.ListOpen(20)
	if err != nil {
		log.WithError(err).Error("failed to list open complaints")
		s.reply(msg.Chat.ID, msgInternal)
		return
	}
	if len(list) == 0 {
		s.reply(msg.Chat.ID, "Очиқ шикоятлар йўқ ✅")
		return
	}
	lines := make([]string, 0, len(list)+1)
	lines = append(lines, fmt.Sprintf("⏳ <b>Очиқ шикоятлар</b> (%d):", len(list)))
	for i := range list {
		lines = append(lines, renderComplaintLine(&list[i]))
	}
	s.reply(msg.Chat.ID, strings.Join(lines, "\n"))
}

func (s *BotService) handleByEmployee(msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		s.reply(msg.Chat.ID, "Қўллаш: /byemp <ходим> [саҳифа]")
		return
	}
	page := 1
	if n, err := strconv.Atoi(args[len(args)-1]); err == nil && len(args) > 1 {
		page = n
		args = args[:len(args)-1]
	}
	if page < 1 {
		page = 1
	}
	employee := strings.Join(args, " ")
	if !s.ComplaintSvc.KnownEmployee(employee) {
		s.reply(msg.Chat.ID, "Бундай ходим рўйхатда йўқ.")
		return
	}

	offset := (page - 1) * byEmployeePageSize
	list, total, err := s.Storage.ListByEmployee(employee, offset, byEmployeePageSize)
	if err != nil {
		log.WithError(err).Errorf("failed to list complaints for employee %s", employee)
		s.reply(msg.Chat.ID, msgInternal)
		return
	}
	if total == 0 {
		s.reply(msg.Chat.ID, "Бу ходим бўйича шикоят йўқ ✅")
		return
	}
	pages := (total + byEmployeePageSize - 1) / byEmployeePageSize
	lines := make([]string, 0, len(list)+1)
	lines = append(lines, fmt.Sprintf("🧑‍💼 <b>%s</b> — жами %d (саҳифа %d/%d):", employee, total, page, pages))
	for i := range list {
		lines = append(lines, renderComplaintLine(&list[i]))
	}
	s.reply(msg.Chat.ID, strings.Join(lines, "\n"))
}

func (s *BotService) handleDelete(msg *tgbotapi.Message) {
	arg := strings.TrimSpace(msg.CommandArguments())
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		s.reply(msg.Chat.ID, "Қўллаш: /delete <id>")
		return
	}

	admin := complaint.Identity{ID: msg.From.ID, Handle: msg.From.UserName}
	c, err := s.ComplaintSvc.Delete(uint(id), admin)
	switch {
	case errors.Is(err, complaint.ErrNotFound):
		s.reply(msg.Chat.ID, msgNotFound)
		return
	case errors.Is(err, complaint.ErrAlreadyDeleted):
		s.reply(msg.Chat.ID, "Бу ёзув аллақачон ўчирилган.")
		return
	case err != nil:
		log.WithError(err).Errorf("failed to delete complaint %d", id)
		s.reply(msg.Chat.ID, msgInternal)
		return
	}

	if c.RelayMessageID != 0 {
		del := tgbotapi.NewDeleteMessage(c.RelayChatID, c.RelayMessageID)
		if _, err := s.BotAPI.Request(del); err != nil {
			log.WithError(err).Errorf("failed to delete relay message for complaint %d", c.ID)
		}
	}
	s.reply(msg.Chat.ID, fmt.Sprintf("№%d ўчирилди 🗑", c.ID))
}

// handleReset clears the whole store behind the passphrase and exits so
// the supervisor restarts the process with a clean state.
func (s *BotService) handleReset(msg *tgbotapi.Message) {
	passphrase := strings.TrimSpace(msg.CommandArguments())
	if s.Cfg.Admin.ResetPassphrase == "" {
		s.reply(msg.Chat.ID, "Тозалаш ўчирилган (парол созланмаган).")
		return
	}
	if passphrase != s.Cfg.Admin.ResetPassphrase {
		s.reply(msg.Chat.ID, "Нотўғри парол.")
		return
	}
	if err := s.Storage.PurgeAll(); err != nil {
		log.WithError(err).Error("failed to purge store")
		s.reply(msg.Chat.ID, msgInternal)
		return
	}
	s.reply(msg.Chat.ID, "Ҳамма ёзувлар ўчирилди. Бот қайта ишга тушади ♻️")
	log.Warnf("store purged by %s, restarting", userTag(msg.From.ID, msg.From.UserName))
	os.Exit(0)
}

// SendDailyDigest is fired by the scheduler at the configured report times.
func (s *BotService) SendDailyDigest(label string) {
	d, err := s.Reporter.DailyDigest(s.now())
	if err != nil {
		log.WithError(err).Error("failed to build daily digest")
		return
	}
	s.sendToGroup(renderDigest(d, label))
}

// SendRolloverAnnouncement is fired once at the start of each new cycle.
func (s *BotService) SendRolloverAnnouncement() {
	s.sendToGroup(renderRollover(report.CycleStartFor(s.now())))
}

// SendAlertIfDue checks the daily threshold; the alert_marks table keeps
// it from firing twice on the same day.
func (s *BotService) SendAlertIfDue() {
	due, total, err := s.Reporter.AlertDue(s.now(), s.Cfg.Report.AlertThreshold)
	if err != nil {
		log.WithError(err).Error("failed to evaluate alert threshold")
		return
	}
	if due {
		s.sendToGroup(renderAlert(total, s.Cfg.Report.AlertThreshold))
	}
}

// groupText prefixes outbound group messages in test mode.
func (s *BotService) groupText(text string) string {
	if s.Cfg.TestMode() {
		return "[TEST] " + text
	}
	return text
}

func (s *BotService) sendToGroup(text string) {
	m := tgbotapi.NewMessage(s.Cfg.Group.ChatID, s.groupText(text))
	m.ParseMode = tgbotapi.ModeHTML
	if _, err := s.BotAPI.Send(m); err != nil {
		log.WithError(err).Error("failed to send group message")
	}
}

func (s *BotService) reply(chatID int64, text string) {
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = tgbotapi.ModeHTML
	if _, err := s.BotAPI.Send(m); err != nil {
		log.WithError(err).Errorf("failed to send message to chat %d", chatID)
	}
}

func (s *BotService) answer(callbackID, text string) {
	if _, err := s.BotAPI.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.WithError(err).Error("failed to answer callback")
	}
}

func (s *BotService) alert(callbackID, text string) {
	if _, err := s.BotAPI.Request(tgbotapi.NewCallbackWithAlert(callbackID, text)); err != nil {
		log.WithError(err).Error("failed to answer callback with alert")
	}
}
