package view

import "time"

// Notice is an operator-facing warning, such as a missing engine runtime or
// a template directory that could not be created.
type Notice struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
	Error   string    `json:"error,omitempty"`
}

// notice records a warning and logs it. The caller must hold v.mu.
func (v *Viewer) notice(message string, err error) {
	n := Notice{Time: time.Now(), Message: message}
	if err != nil {
		n.Error = err.Error()
	}
	v.logger.Warn(message, "error", err)

	v.notices = append(v.notices, n)
	if limit := v.config.MaxNotices; limit > 0 && len(v.notices) > limit {
		v.notices = v.notices[len(v.notices)-limit:]
	}
}

// Notices returns the recorded notices, oldest first.
func (v *Viewer) Notices() []Notice {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Notice, len(v.notices))
	copy(out, v.notices)
	return out
}

// ClearNotices drops every recorded notice.
func (v *Viewer) ClearNotices() {
	v.mu.Lock()
	v.notices = nil
	v.mu.Unlock()
}
