package service

import (
	"time"

	"chatkit/internal/domain/entity"
)

// groupGap is the maximum gap between two consecutive messages of the same
// sender for them to render as one bubble group.
const groupGap = 60 * time.Second

// ConversationPresenter derives render-ready grouping and label decisions from
// an ordered message sequence (timestamp ascending) for one room. It holds no
// state besides the clock, which is injectable for tests.
type ConversationPresenter struct {
	now func() time.Time
}

func NewConversationPresenter() *ConversationPresenter {
	return &ConversationPresenter{now: time.Now}
}

// NewConversationPresenterAt pins the presenter's clock. Test helper.
func NewConversationPresenterAt(now func() time.Time) *ConversationPresenter {
	return &ConversationPresenter{now: now}
}

// IsLastInGroup reports whether messages[i] closes its bubble group: it is the
// final message, the sender changes after it, or the next message arrives more
// than a minute later.
func (p *ConversationPresenter) IsLastInGroup(messages []*entity.Message, i int) bool {
	if i == len(messages)-1 {
		return true
	}
	current, next := messages[i], messages[i+1]

	if current.SenderID != next.SenderID {
		return true
	}
	return next.Timestamp.Sub(current.Timestamp) > groupGap
}

// ShouldShowDateSeparator reports whether a date separator belongs above
// messages[i]: always for the first message, otherwise on a calendar-day change.
func (p *ConversationPresenter) ShouldShowDateSeparator(messages []*entity.Message, i int) bool {
	if i == 0 {
		return true
	}
	return !sameCalendarDay(messages[i].Timestamp, messages[i-1].Timestamp)
}

// ShouldShowReadReceipt reports whether messages[i] may carry a read receipt.
// Only the viewer's own messages qualify, only at the end of a group, and only
// within the newest self-sent group. Older groups never show receipts even if
// individually marked read.
func (p *ConversationPresenter) ShouldShowReadReceipt(messages []*entity.Message, i int, viewerID string) bool {
	if messages[i].SenderID != viewerID {
		return false
	}
	if !p.IsLastInGroup(messages, i) {
		return false
	}

	var latestOwn *entity.Message
	for _, m := range messages {
		if m.SenderID == viewerID {
			latestOwn = m
		}
	}
	if latestOwn == nil {
		return false
	}

	return latestOwn.Timestamp.Sub(messages[i].Timestamp) <= groupGap
}

// FormatRelativeDate renders a date separator label, evaluated against the
// current time at call time.
func (p *ConversationPresenter) FormatRelativeDate(date time.Time) string {
	now := p.now()

	if sameCalendarDay(date, now) {
		return "Today"
	}
	if sameCalendarDay(date, now.AddDate(0, 0, -1)) {
		return "Yesterday"
	}
	return date.Format("January 2, 2006")
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
