package messages

import (
	"fmt"
	"strings"
	"time"

	"github.com/BatmanBruc/vip-orders-bot/internal/pricing"
)

const ParseModeHTML = "HTML"

const dateLayout = "2006-01-02"

func Escape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(strings.TrimSpace(s))
}

func handleLine(handle string) string {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return "Telegram: -"
	}
	return "Telegram: @" + Escape(handle)
}

func planLines(p pricing.Plan) string {
	return fmt.Sprintf("Plan: <b>%s</b>\nDuration: %s\nPrice: %s", p.Title(), p.Duration(), p.Price())
}

func ErrorDefault() string {
	return "🚫 <b>Something went wrong</b>\nPlease try again in a moment."
}

func Welcome(plans []pricing.Plan) string {
	var sb strings.Builder
	sb.WriteString("👋 <b>Welcome!</b>\nChoose a plan on our website to place an order.\n")
	for _, p := range plans {
		sb.WriteString(fmt.Sprintf("\n• <b>%s</b>: %s, %s", p.Title(), p.Price(), p.Duration()))
	}
	return sb.String()
}

func StartUsage() string {
	return "❓ <b>Order link not recognized</b>\nPlease open the order link from the website again."
}

func InvalidPlan(planID string) string {
	return fmt.Sprintf("🚫 <b>Unknown plan</b>: %s\nPlease choose a plan on the website again.", Escape(planID))
}

func OrderReceived(p pricing.Plan) string {
	return "✅ <b>Order received!</b>\n" + planLines(p) +
		"\n\nSend a photo or document of your payment proof here." +
		"\nYou will be notified before your subscription ends." +
		"\nYour VIP link will be sent after admin approval."
}

func OperatorNewOrder(name, handle string, subscriberID int64, p pricing.Plan, orderID string) string {
	return fmt.Sprintf("🆕 <b>New order</b>\nName: %s\nID: <code>%d</code>\n%s\n%s\nOrder ID: <code>%s</code>",
		Escape(name), subscriberID, handleLine(handle), planLines(p), Escape(orderID))
}

func ProofReceived() string {
	return "✅ Your payment proof has been received. Admin will review and send your VIP link shortly."
}

func OperatorProofReceived(name, handle string, subscriberID int64, planID, orderID string) string {
	return fmt.Sprintf("📸 <b>Payment proof received</b>\nName: %s\nID: <code>%d</code>\n%s\nPlan: <b>%s</b>\nOrder ID: <code>%s</code>",
		Escape(name), subscriberID, handleLine(handle), Escape(strings.ToUpper(planID)), Escape(orderID))
}

func Approved(planID, vipLink string, expiresAt *time.Time) string {
	until := "Valid: lifetime"
	if expiresAt != nil {
		until = "Valid until: " + expiresAt.UTC().Format(dateLayout)
	}
	return fmt.Sprintf("🎉 <b>Payment confirmed!</b>\nPlan: <b>%s</b>\n%s\nJoin VIP here:\n%s",
		Escape(strings.ToUpper(planID)), until, Escape(vipLink))
}

func Rejected(supportContact string) string {
	return "❌ <b>Payment rejected.</b> Your link will not be sent.\nPlease contact support if this is a mistake: " +
		Escape(supportContact)
}

func ExpiresSoon(planID string, expiresAt time.Time) string {
	return fmt.Sprintf("⚠️ Your <b>%s</b> subscription expires soon (%s). Renew to keep your access.",
		Escape(strings.ToUpper(planID)), expiresAt.UTC().Format(dateLayout))
}

func Expired(planID string) string {
	return fmt.Sprintf("⏰ Your <b>%s</b> subscription expired. Please renew.", Escape(strings.ToUpper(planID)))
}

type StatsLine struct {
	Plan  string
	Count int
}

func Stats(lines []StatsLine, total, pendingReview int) string {
	var sb strings.Builder
	sb.WriteString("📊 <b>Subscribers</b>")
	for _, l := range lines {
		if l.Plan == "" {
			continue
		}
		name := strings.ToUpper(l.Plan[:1]) + l.Plan[1:]
		sb.WriteString(fmt.Sprintf("\n%s: %d", Escape(name), l.Count))
	}
	sb.WriteString(fmt.Sprintf("\nTotal: %d\nAwaiting review: %d", total, pendingReview))
	return sb.String()
}

func BtnApprove() string {
	return "Approve ✅"
}

func BtnReject() string {
	return "Reject ❌"
}

func CallbackApproved() string {
	return "Approved"
}

func CallbackRejected() string {
	return "Rejected"
}

func CallbackAlreadyHandled() string {
	return "Already handled or no proof yet"
}

func CallbackInvalid() string {
	return "Invalid action"
}

func CallbackUnauthorized() string {
	return "Only the operator can decide orders"
}

func CallbackFailed() string {
	return "Could not save, try again"
}
