package telegram

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"shikoyatbot/bot/internal/models"
	"shikoyatbot/bot/internal/report"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
)

const timeLayout = "02.01.2006 15:04"
const dateLayout = "02.01.2006"

// User-facing texts are Uzbek, HTML parse mode.
const (
	msgGroupStart = "Салом! Мен ишлаяпман ✅\nГуруҳ ID олиш учун: /chatid"
	msgGreeting   = "Салом! 👋\nХато/шикоят ёзиш учун масъул ходимни танланг:"
	msgAccepted   = "Қабул қилинди ✅\nШикоят гуруҳга чиқарилди."

	msgPrivateOnly  = "Бу танлаш фақат личкада ишлайди."
	msgGroupOnly    = "Бу тугма фақат асосий гуруҳда ишлайди."
	msgNoPermission = "Сизда буни ёпиш ҳуқуқи йўқ."
	msgAlreadyDone  = "Бу хатолик аллақачон ёпилган."
	msgNotFound     = "Бундай шикоят топилмади."
	msgBadChoice    = "Нотўғри танлов."
	msgBadOutcome   = "Нотўғри статус."
	msgClosed       = "Ёпилди ✅"
	msgInternal     = "Хатолик юз берди. Қайта уриниб кўринг."

	msgHelp = "Командалар:\n" +
		"• /start — личкада шикоят бошлаш\n" +
		"• /chatid — чат ID чиқаради\n" +
		"• /help — шу ёрдам\n"
	msgAdminHelp = "Раҳбарият учун:\n" +
		"• /stats — бугунги ҳисобот\n" +
		"• /open — очиқ шикоятлар\n" +
		"• /byemp <ходим> [саҳифа] — ходим бўйича\n" +
		"• /delete <id> — ёзувни ўчириш\n" +
		"• /reset <парол> — ҳамма ёзувларни тозалаш\n"
)

// userTag renders "@handle", or "ID:<id>" when the user has no handle.
func userTag(id int64, handle string) string {
	if handle != "" {
		return "@" + handle
	}
	return fmt.Sprintf("ID:%d", id)
}

func statusLine(status string) string {
	switch status {
	case models.StatusResolved:
		return "✅ Бартараф этилди"
	case models.StatusRejected:
		return "❌ Асосли эмас (рад)"
	case models.StatusDeleted:
		return "🗑 Ўчирилган"
	default:
		return "⏳ Кутилмоқда"
	}
}

// renderRelay builds the full supervisory-group notification from the
// record's current state. It is re-rendered from scratch on every status
// change, never patched from the previous message text.
func renderRelay(c *models.Complaint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 <b>Янги хатолик аниқланди</b> — №%d\n\n", c.ID)
	fmt.Fprintf(&b, "👤 <b>Ким ёзди:</b> %s\n", userTag(c.ReporterID, c.ReporterHandle))
	fmt.Fprintf(&b, "🧑‍💼 <b>Ходим:</b> %s\n", html.EscapeString(c.Employee))
	fmt.Fprintf(&b, "📝 <b>Тавсиф:</b>\n%s\n\n", html.EscapeString(c.Text))
	fmt.Fprintf(&b, "🕒 <b>Вақт:</b> %s\n", c.CreatedAt.Format(timeLayout))
	fmt.Fprintf(&b, "📌 <b>Статус:</b> %s", statusLine(c.Status))
	if !c.IsOpen() && c.DecidedByID != nil {
		fmt.Fprintf(&b, "\n🔒 <b>Ёпди:</b> %s", userTag(*c.DecidedByID, c.DecidedByHandle))
		if c.DecidedAt != nil {
			fmt.Fprintf(&b, "\n🕒 <b>Ёпилган вақт:</b> %s", c.DecidedAt.Format(timeLayout))
		}
	}
	return b.String()
}

// renderOutcomeNotice is the message sent to the original reporter once
// their complaint is decided. The rejected variant is deliberately soft.
func renderOutcomeNotice(c *models.Complaint) string {
	switch c.Status {
	case models.StatusResolved:
		return fmt.Sprintf("✅ Сизнинг №%d шикоятингиз бартараф этилди. Хабарингиз учун раҳмат!", c.ID)
	case models.StatusRejected:
		return fmt.Sprintf("ℹ️ Сизнинг №%d шикоятингиз кўриб чиқилди ва асосли деб топилмади.\nЯнги далил бўлса, аввал раҳбар билан маслаҳатлашиб, кейин қайта ёзинг.", c.ID)
	default:
		return fmt.Sprintf("Сизнинг №%d шикоятингиз ҳолати: %s", c.ID, statusLine(c.Status))
	}
}

func renderPromptText(employee string) string {
	return fmt.Sprintf("✅ Танланди: <b>%s</b>\n\nЭнди хатолик тавсифини ёзинг (қанча аниқ бўлса, шунча яхши).",
		html.EscapeString(employee))
}

func renderTextTooShort(minLen int) string {
	return fmt.Sprintf("Тавсиф жуда қисқа. Камида %d та белги ёзинг.", minLen)
}

// renderDigest formats the daily digest. A quiet day gets the
// motivational variant instead of the statistics table on purpose.
func renderDigest(d *report.Digest, label string) string {
	var b strings.Builder
	if d.Quiet() {
		fmt.Fprintf(&b, "🌟 <b>%s — Бугунча ҳолат</b>\n\n", label)
		b.WriteString("Хатолик йўқ ✅\nШунақа давом этамиз! Эртага ҳам тоза ишлаймиз 💪")
	} else {
		fmt.Fprintf(&b, "📊 <b>%s — Бугунча ҳисобот</b>\n\n", label)
		fmt.Fprintf(&b, "Жами шикоят: <b>%d</b>\n", d.Today.Total)
		fmt.Fprintf(&b, "Очиқ: <b>%d</b>\n", d.Today.Open)
		fmt.Fprintf(&b, "Бартараф: <b>%d</b>\n", d.Today.Resolved)
		fmt.Fprintf(&b, "Рад: <b>%d</b>\n\n", d.Today.Rejected)
		b.WriteString("⚡ Мотивация: хатоликни эртагага қолдирмай, шу заҳоти ёпамиз!")
	}
	b.WriteString("\n\n📅 <b>Ойлик ҳисоб (2-санадан)</b>\n")
	fmt.Fprintf(&b, "Бошланиш: <b>%s</b>\n", d.CycleStart.Format(dateLayout))
	fmt.Fprintf(&b, "Жами: <b>%d</b> | Очиқ: <b>%d</b> | Бартараф: <b>%d</b> | Рад: <b>%d</b>\n",
		d.Cycle.Total, d.Cycle.Open, d.Cycle.Resolved, d.Cycle.Rejected)
	fmt.Fprintf(&b, "Ҳамма вақтдаги очиқ шикоятлар: <b>%d</b>", d.OpenAllTime)
	return b.String()
}

func renderRollover(start time.Time) string {
	return fmt.Sprintf("🆕 <b>Янги ҳисоб ойи бошланди!</b>\n📅 Бошланиш: <b>%s</b>\n\nИшни янги ойда тоза бошлаймиз 💪",
		start.Format(dateLayout))
}

func renderAlert(total int64, threshold int) string {
	return fmt.Sprintf("⚠️ <b>Диққат!</b> Бугунги шикоятлар сони <b>%d</b> тага етди (чегара: %d).\nВазиятни текшириб чиқинг.",
		total, threshold)
}

func renderComplaintLine(c *models.Complaint) string {
	text := c.Text
	if r := []rune(text); len(r) > 60 {
		text = string(r[:60]) + "…"
	}
	return fmt.Sprintf("№%d [%s] %s — %s (%s)",
		c.ID, c.CreatedAt.Format(dateLayout), html.EscapeString(c.Employee),
		html.EscapeString(text), statusLine(c.Status))
}

// employeesKeyboard lays the roster out two buttons per row. Callback
// data carries the roster index, not the name, to stay inside Telegram's
// 64-byte callback limit.
func employeesKeyboard(roster []string) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{}
	row := []tgbotapi.InlineKeyboardButton{}
	for i, name := range roster {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(name, fmt.Sprintf("emp:%d", i)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = []tgbotapi.InlineKeyboardButton{}
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func decisionKeyboard(complaintID uint) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Хато бартараф этилди",
				fmt.Sprintf("close:%d:%s", complaintID, models.StatusResolved)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Асосли эмас (рад)",
				fmt.Sprintf("close:%d:%s", complaintID, models.StatusRejected)),
		),
	)
}

func parseEmployeeCallback(data string) (int, error) {
	idx, err := strconv.Atoi(strings.TrimPrefix(data, "emp:"))
	if err != nil {
		return 0, errors.Wrapf(err, "malformed employee callback %q", data)
	}
	return idx, nil
}

func parseCloseCallback(data string) (uint, string, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != "close" {
		return 0, "", errors.Errorf("malformed decision callback %q", data)
	}
	id, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, "", errors.Wrapf(err, "bad complaint id in callback %q", data)
	}
	return uint(id), parts[2], nil
}
