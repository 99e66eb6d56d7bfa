package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"glasses-cloud-be/internal/constant"
	"glasses-cloud-be/internal/dto"
	"glasses-cloud-be/internal/pkg/logger"
)

// Mode is the dashboard display mode.
type Mode string

const (
	ModeNone     Mode = "none"
	ModeMain     Mode = "main"
	ModeExpanded Mode = "expanded"
)

// ParseMode validates a wire mode string.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModeNone, ModeMain, ModeExpanded:
		return Mode(raw), nil
	}
	return "", fmt.Errorf("unknown dashboard mode %q", raw)
}

// ContentItem is one app's contribution to one mode. A newer submission
// from the same app in the same mode replaces the old one.
type ContentItem struct {
	PackageName string
	Content     string
	UpdatedAt   time.Time
}

// DeviceSender delivers rendered display payloads; rendering never waits on
// the device ack.
type DeviceSender interface {
	SendToDevice(msgType string, payload interface{}) error
}

// Manager merges system status and competing app content into a single
// display per mode. Owned by one session; all calls arrive on the session's
// message loop.
type Manager struct {
	mode          Mode
	systemPackage string
	systemStatus  string
	content       map[Mode]map[string]*ContentItem
	rotationIndex int
	sender        DeviceSender
	log           logger.ILogger
	now           func() time.Time
}

func NewManager(systemPackage string, sender DeviceSender, log logger.ILogger) *Manager {
	return &Manager{
		mode:          ModeNone,
		systemPackage: systemPackage,
		content: map[Mode]map[string]*ContentItem{
			ModeMain:     {},
			ModeExpanded: {},
		},
		sender: sender,
		log:    log,
		now:    time.Now,
	}
}

// Mode returns the current display mode.
func (m *Manager) Mode() Mode {
	return m.mode
}

// SetMode switches the dashboard mode. Only the designated system package
// may do this; anyone else is rejected silently toward the device (logged,
// no session impact).
func (m *Manager) SetMode(packageName string, mode Mode) error {
	if packageName != m.systemPackage {
		m.log.Warn("Dashboard", "Unauthorized mode change attempt", map[string]interface{}{
			"package": packageName,
			"mode":    string(mode),
		})
		return fmt.Errorf("package %q may not change dashboard mode", packageName)
	}
	m.mode = mode
	m.render()
	return nil
}

// SetSystemStatus updates the status line merged into every render.
func (m *Manager) SetSystemStatus(status string) {
	m.systemStatus = status
	if m.mode != ModeNone {
		m.render()
	}
}

// UpdateContent stores the app's content for each requested mode and
// re-renders when one of those modes is currently showing.
func (m *Manager) UpdateContent(packageName, content string, modes []Mode) {
	rerender := false
	for _, mode := range modes {
		bucket, ok := m.content[mode]
		if !ok {
			continue
		}
		bucket[packageName] = &ContentItem{
			PackageName: packageName,
			Content:     content,
			UpdatedAt:   m.now(),
		}
		if mode == m.mode {
			rerender = true
		}
	}
	m.clampRotation()
	if rerender {
		m.render()
	}
}

// HandleHeadUp advances the main-mode rotation by one and re-renders.
func (m *Manager) HandleHeadUp() {
	n := len(m.content[ModeMain])
	if n == 0 {
		m.rotationIndex = 0
		return
	}
	m.rotationIndex = (m.rotationIndex + 1) % n
	if m.mode == ModeMain {
		m.render()
	}
}

// RemoveApp drops the app's content from every mode, re-clamps the rotation
// index, and always re-renders.
func (m *Manager) RemoveApp(packageName string) {
	removed := false
	for _, bucket := range m.content {
		if _, ok := bucket[packageName]; ok {
			delete(bucket, packageName)
			removed = true
		}
	}
	if !removed {
		return
	}
	m.clampRotation()
	m.render()
}

// clampRotation resets the index to 0 whenever the main content set shrank
// below it. The index must never point past the end of the remaining set.
func (m *Manager) clampRotation() {
	if m.rotationIndex >= len(m.content[ModeMain]) {
		m.rotationIndex = 0
	}
}

// mainItems returns the rotation set ordered most-recent-first. The sort is
// re-derived on every render, so a content update can change which app is
// "next"; this matches the user-visible cycling behavior the device shipped
// with.
func (m *Manager) mainItems() []*ContentItem {
	items := make([]*ContentItem, 0, len(m.content[ModeMain]))
	for _, it := range m.content[ModeMain] {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].PackageName < items[j].PackageName
		}
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
	return items
}

func (m *Manager) render() {
	var payload dto.DisplayEventPayload

	switch m.mode {
	case ModeNone:
		return
	case ModeMain:
		items := m.mainItems()
		var body, source string
		if len(items) > 0 {
			idx := m.rotationIndex
			if idx >= len(items) {
				idx = 0
			}
			body = items[idx].Content
			source = items[idx].PackageName
		}
		payload = dto.DisplayEventPayload{
			View:   "main",
			Text:   joinStatus(m.systemStatus, body),
			Source: source,
		}
	case ModeExpanded:
		var latest *ContentItem
		for _, it := range m.content[ModeExpanded] {
			if latest == nil || it.UpdatedAt.After(latest.UpdatedAt) {
				latest = it
			}
		}
		var body, source string
		if latest != nil {
			body = latest.Content
			source = latest.PackageName
		}
		payload = dto.DisplayEventPayload{
			View:   "expanded",
			Text:   joinStatus(m.systemStatus, body),
			Source: source,
		}
	}

	if err := m.sender.SendToDevice(constant.CloudDisplayEvent, payload); err != nil {
		m.log.Warn("Dashboard", "Display delivery failed", map[string]interface{}{"error": err.Error()})
	}
}

func joinStatus(status, body string) string {
	switch {
	case status == "":
		return body
	case body == "":
		return status
	default:
		return strings.Join([]string{status, body}, "\n")
	}
}
