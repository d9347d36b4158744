package client

import (
	"time"

	"go.uber.org/zap"

	"github.com/sorivoice/sori/domain/entities"
	"github.com/sorivoice/sori/internal/protocol"
)

// Auto chat controller states. Transitions into and out of active are
// gated on server acknowledgements; the client only ever requests.
const (
	autoChatInactive    = "inactive"
	autoChatAwaitingAck = "awaiting_ack"
	autoChatActive      = "active"
)

// notConnectedAdvisory matches the wording of the backend demo UI.
const notConnectedAdvisory = "서버에 연결되어 있지 않습니다. 연결 후 다시 시도해 주세요."

type autoChatState struct {
	awaitingAck bool
	session     *entities.AutoChatSession

	// Current display settings; last writer wins between local updates
	// and server pushes.
	theme    string
	interval int
}

func (a *autoChatState) state() string {
	switch {
	case a.session != nil:
		return autoChatActive
	case a.awaitingAck:
		return autoChatAwaitingAck
	default:
		return autoChatInactive
	}
}

// deactivateLocked drops any session or pending request. Returns whether
// anything changed. Caller holds c.mu.
func (a *autoChatState) deactivateLocked() bool {
	changed := a.awaitingAck || a.session != nil
	a.awaitingAck = false
	a.session = nil
	return changed
}

// StartAutoChat requests a session from the server. The controller waits
// for auto_chat_started before reporting the session active; a request
// already in flight makes this a no-op.
func (c *Client) StartAutoChat(theme string, intervalSeconds int) error {
	if !c.Connected() {
		c.advisory(notConnectedAdvisory)
		return ErrNotConnected
	}

	if theme == "" {
		theme = entities.DefaultAutoChatTheme
	}
	intervalSeconds = entities.ClampAutoChatInterval(intervalSeconds)

	c.mu.Lock()
	if c.autoChat.state() != autoChatInactive {
		c.mu.Unlock()
		return nil
	}
	c.autoChat.awaitingAck = true
	c.autoChat.theme = theme
	c.autoChat.interval = intervalSeconds
	c.mu.Unlock()

	if err := c.conv.Send(protocol.NewAutoChatStartMessage(theme, intervalSeconds)); err != nil {
		c.mu.Lock()
		c.autoChat.awaitingAck = false
		c.mu.Unlock()
		return err
	}

	c.events.AutoChatStateChanged(autoChatAwaitingAck, nil)
	c.logger.Info("Auto chat start requested",
		zap.String("theme", theme),
		zap.Int("interval", intervalSeconds))
	return nil
}

// StopAutoChat asks the server to end the session. The session stays
// active until auto_chat_stopped arrives.
func (c *Client) StopAutoChat() error {
	if !c.Connected() {
		c.advisory(notConnectedAdvisory)
		return ErrNotConnected
	}

	c.mu.Lock()
	state := c.autoChat.state()
	c.mu.Unlock()

	if state == autoChatInactive {
		return nil
	}
	if err := c.conv.Send(protocol.NewAutoChatStopMessage()); err != nil {
		return err
	}
	c.logger.Info("Auto chat stop requested")
	return nil
}

// UpdateAutoChatSettings changes the displayed theme and interval locally.
// The server pushes auto_chat_settings_updated for its own changes; last
// writer wins. Returns the applied values.
func (c *Client) UpdateAutoChatSettings(theme string, intervalSeconds int) (string, int) {
	if theme == "" {
		theme = entities.DefaultAutoChatTheme
	}
	intervalSeconds = entities.ClampAutoChatInterval(intervalSeconds)

	c.mu.Lock()
	c.autoChat.theme = theme
	c.autoChat.interval = intervalSeconds
	if c.autoChat.session != nil {
		c.autoChat.session.Theme = theme
		c.autoChat.session.IntervalSeconds = intervalSeconds
	}
	c.mu.Unlock()

	c.events.AutoChatSettingsUpdated(theme, intervalSeconds)
	return theme, intervalSeconds
}

// handleAutoChatStarted activates the session the server acknowledged.
// Unsolicited acknowledgements activate too; the server is authoritative.
func (c *Client) handleAutoChatStarted(env *protocol.Envelope) {
	c.mu.Lock()
	theme := env.Theme
	if theme == "" {
		theme = c.autoChat.theme
	}
	interval := env.Interval
	if interval == 0 {
		interval = c.autoChat.interval
	}
	session := &entities.AutoChatSession{
		ID:              env.SessionID,
		Theme:           theme,
		IntervalSeconds: entities.ClampAutoChatInterval(interval),
		StartedAt:       time.Now(),
	}
	c.autoChat.awaitingAck = false
	c.autoChat.session = session
	c.autoChat.theme = session.Theme
	c.autoChat.interval = session.IntervalSeconds
	snapshot := *session
	c.mu.Unlock()

	c.events.AutoChatStateChanged(autoChatActive, &snapshot)
	c.logger.Info("Auto chat session started",
		zap.String("sessionId", session.ID),
		zap.String("theme", session.Theme),
		zap.Int("interval", session.IntervalSeconds))
}

// handleAutoChatStopped deactivates on server acknowledgement
func (c *Client) handleAutoChatStopped() {
	c.mu.Lock()
	changed := c.autoChat.deactivateLocked()
	c.mu.Unlock()

	if changed {
		c.events.AutoChatStateChanged(autoChatInactive, nil)
		c.logger.Info("Auto chat session stopped")
	}
}

// handleAutoChatSettingsUpdated applies a server-side settings push
func (c *Client) handleAutoChatSettingsUpdated(env *protocol.Envelope) {
	c.mu.Lock()
	if env.Theme != "" {
		c.autoChat.theme = env.Theme
	}
	if env.Interval != 0 {
		c.autoChat.interval = entities.ClampAutoChatInterval(env.Interval)
	}
	if c.autoChat.session != nil {
		c.autoChat.session.Theme = c.autoChat.theme
		c.autoChat.session.IntervalSeconds = c.autoChat.interval
	}
	theme, interval := c.autoChat.theme, c.autoChat.interval
	c.mu.Unlock()

	c.events.AutoChatSettingsUpdated(theme, interval)
}

// handleAutoChatTurn records a server-generated auto chat turn and
// immediately forwards it back so the server attaches synthesized audio.
func (c *Client) handleAutoChatTurn(env *protocol.Envelope) {
	c.mu.Lock()
	sessionID := env.SessionID
	theme := c.autoChat.theme
	if sessionID == "" && c.autoChat.session != nil {
		sessionID = c.autoChat.session.ID
	}
	c.mu.Unlock()

	c.append(entities.ChatMessage{
		Role:      entities.MessageRoleAuto,
		Text:      env.Text,
		Timestamp: env.ParseTimestamp(),
	})

	if err := c.conv.Send(protocol.NewAutoChatForwardMessage(env.Text, sessionID, theme)); err != nil {
		c.logger.Warn("Failed to forward auto chat turn", zap.Error(err))
	}
}
