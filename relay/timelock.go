package relay

import (
	"fmt"
	"time"
)

// DeriveDestinationOffset computes the relative timelock offset for a mirror
// escrow. The destination contract sets its own cancellation deadline as
// block_time + offset when the create transaction lands, so the offset must
// be relative; passing the source chain's absolute timestamp would
// desynchronize the two escrows.
//
// The offset is half of the remaining source window, clamped to the
// configured [min, max] range, and always at least SafetyMargin short of the
// source deadline. This is the single authoritative derivation: the
// destination escrow must become refundable strictly before the source escrow
// does, otherwise the initiator could refund the source while the relay's
// mirror is still locked.
func DeriveDestinationOffset(sourceDeadline, now time.Time, cfg TimelockConfig) (time.Duration, error) {
	remaining := sourceDeadline.Sub(now).Truncate(time.Second)
	margin := time.Duration(cfg.SafetyMarginSeconds) * time.Second
	minOffset := time.Duration(cfg.MinOffsetSeconds) * time.Second
	maxOffset := time.Duration(cfg.MaxOffsetSeconds) * time.Second

	if remaining <= minOffset+margin {
		return 0, fmt.Errorf("%w: source escrow expires in %s, need at least %s",
			ErrValidation, remaining, minOffset+margin)
	}

	offset := remaining / 2
	if offset > maxOffset {
		offset = maxOffset
	}
	if offset > remaining-margin {
		offset = remaining - margin
	}
	if offset < minOffset {
		offset = minOffset
	}
	return offset.Truncate(time.Second), nil
}

// NanosToTime converts a NEAR block timestamp (nanoseconds since epoch) to a
// time.Time. Normalization happens at the decode boundary so the coordinator
// only ever sees seconds-granular wall clock values.
func NanosToTime(nanos uint64) time.Time {
	return time.Unix(0, int64(nanos))
}
