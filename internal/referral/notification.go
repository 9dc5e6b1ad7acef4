package referral

import "context"

type NotificationKind string

const (
	NotificationProgress NotificationKind = "progress"
	NotificationReward   NotificationKind = "reward"
)

// Notification is a side effect the engine asks the transport to perform
// after the ledger mutation has committed.
type Notification struct {
	Kind      NotificationKind
	UserID    int64
	Count     int
	Threshold int
	Payload   string
}

// Dispatcher delivers notifications. Implementations log and swallow
// delivery failures; the ledger is never rolled back because of them.
type Dispatcher interface {
	SendProgress(ctx context.Context, userID int64, count, threshold int)
	SendReward(ctx context.Context, userID int64, payload string)
}

// Dispatch hands every notification to d in order.
func Dispatch(ctx context.Context, d Dispatcher, notes []Notification) {
	for _, n := range notes {
		switch n.Kind {
		case NotificationProgress:
			d.SendProgress(ctx, n.UserID, n.Count, n.Threshold)
		case NotificationReward:
			d.SendReward(ctx, n.UserID, n.Payload)
		}
	}
}
