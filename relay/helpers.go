package relay

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

func HttpCodeCheck(httpCode int) string {
	// 429 Too Many Requests
	if httpCode == 429 {
		return "Too Many Requests, code:429"
	}
	// 503 Service Unavailable
	if httpCode == 503 {
		return "Service Unavailable, code:503"
	}
	// 504 Gateway Timeout
	if httpCode == 504 {
		return "Gateway Timeout, code:504"
	}
	return ""
}

func parseHexBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: not hex: %v", ErrValidation, err)
	}
	return raw, nil
}

func sortEventsByHeight(events []Event) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Height < events[j].Height })
}

// isDuplicateEscrowErr matches the chain-side rejection of a second escrow
// with the same hashlock. Both contracts reject with a stable message; the
// mutators translate it into an idempotent no-op.
func isDuplicateEscrowErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "escrow already exists") ||
		strings.Contains(msg, "duplicate hashlock") ||
		strings.Contains(msg, "alreadyexists")
}
