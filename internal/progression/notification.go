package progression

type Kind string

const (
	KindSuccess     Kind = "success"
	KindMilestone   Kind = "milestone"
	KindDestructive Kind = "destructive"
)

type Notification struct {
	Kind        Kind   `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Notifier delivers user-facing notifications. Implementations must not block.
type Notifier interface {
	Notify(userID int64, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(userID int64, n Notification)

func (f NotifierFunc) Notify(userID int64, n Notification) { f(userID, n) }
