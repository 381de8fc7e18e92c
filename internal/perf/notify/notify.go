// Package notify keeps short-lived operator notices for the dashboard
// status bar.
package notify

import (
	"errors"
	"sync"
	"time"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"
)

// DefaultTTL is how long a notice stays visible.
const DefaultTTL = 4 * time.Second

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notice is one transient message. Op names the operation it is about.
type Notice struct {
	Op        string
	Message   string
	Level     Level
	ExpiresAt time.Time
}

// Text renders the notice as "op: message".
func (n Notice) Text() string {
	if n.Op == "" {
		return n.Message
	}
	return n.Op + ": " + n.Message
}

// Notifier holds the current notices, oldest first.
type Notifier struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	notices []Notice
}

// New returns a notifier with DefaultTTL. A zero ttl keeps the default.
func New(ttl time.Duration, now func() time.Time) *Notifier {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Notifier{ttl: ttl, now: now}
}

// Post adds a notice that expires after the notifier's TTL.
func (n *Notifier) Post(op, message string, level Level) Notice {
	notice := Notice{Op: op, Message: message, Level: level, ExpiresAt: n.now().Add(n.ttl)}
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	n.mu.Unlock()
	return notice
}

func (n *Notifier) Info(op, message string) Notice    { return n.Post(op, message, LevelInfo) }
func (n *Notifier) Success(op, message string) Notice { return n.Post(op, message, LevelSuccess) }
func (n *Notifier) Warn(op, message string) Notice    { return n.Post(op, message, LevelWarning) }

// Error posts a failure notice. The op is taken from a domain error when
// the caller passes none, so every failure names its operation.
func (n *Notifier) Error(op string, err error) Notice {
	if op == "" {
		op = OpOf(err)
	}
	return n.Post(op, err.Error(), LevelError)
}

// Active drops expired notices and returns the rest.
func (n *Notifier) Active() []Notice {
	now := n.now()

	n.mu.Lock()
	defer n.mu.Unlock()
	kept := n.notices[:0]
	for _, notice := range n.notices {
		if now.Before(notice.ExpiresAt) {
			kept = append(kept, notice)
		}
	}
	n.notices = kept
	return append([]Notice(nil), kept...)
}

// Current returns the newest active notice.
func (n *Notifier) Current() (Notice, bool) {
	active := n.Active()
	if len(active) == 0 {
		return Notice{}, false
	}
	return active[len(active)-1], true
}

// Clear removes every notice.
func (n *Notifier) Clear() {
	n.mu.Lock()
	n.notices = nil
	n.mu.Unlock()
}

// OpOf extracts the operation name carried by a domain error.
func OpOf(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Op
	}
	var serr *domain.ServerError
	if errors.As(err, &serr) {
		return serr.Op
	}
	var terr *domain.TransportError
	if errors.As(err, &terr) {
		return terr.Op
	}
	return ""
}
