package orders

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/BatmanBruc/vip-orders-bot/types"
)

var ErrInvalidAction = errors.New("invalid action data")

// ActionData builds the callback payload carried by an operator button,
// e.g. "approve_123456_01J...". It stays below Telegram's 64 byte limit.
func ActionData(kind types.ActionKind, subscriberID int64, orderID string) string {
	if orderID == "" {
		return fmt.Sprintf("%s_%d", kind, subscriberID)
	}
	return fmt.Sprintf("%s_%d_%s", kind, subscriberID, orderID)
}

// ParseAction reverses ActionData. The order id is optional so buttons that
// only carry the subscriber id still resolve to the current order.
func ParseAction(data string) (types.ActionKind, int64, string, error) {
	parts := strings.Split(strings.TrimSpace(data), "_")
	if len(parts) < 2 || len(parts) > 3 {
		return "", 0, "", fmt.Errorf("%w: %q", ErrInvalidAction, data)
	}
	kind := types.ActionKind(parts[0])
	if kind != types.ActionApprove && kind != types.ActionReject {
		return "", 0, "", fmt.Errorf("%w: %q", ErrInvalidAction, data)
	}
	subscriberID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || subscriberID == 0 {
		return "", 0, "", fmt.Errorf("%w: %q", ErrInvalidAction, data)
	}
	orderID := ""
	if len(parts) == 3 {
		orderID = strings.TrimSpace(parts[2])
		if orderID == "" {
			return "", 0, "", fmt.Errorf("%w: %q", ErrInvalidAction, data)
		}
	}
	return kind, subscriberID, orderID, nil
}

// ParseStartPayload splits a deep-link payload of the form "plan_handle".
// The handle is optional; the plan must be present.
func ParseStartPayload(payload string) (planID, handle string, err error) {
	payload = strings.TrimSpace(payload)
	planID, handle, _ = strings.Cut(payload, "_")
	planID = strings.ToLower(strings.TrimSpace(planID))
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if planID == "" {
		return "", "", fmt.Errorf("%w: empty plan in %q", ErrInvalidPlan, payload)
	}
	return planID, handle, nil
}
