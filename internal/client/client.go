// Package client implements the voice chat client core: channel
// management, the capture pipeline, transcription display state, message
// dispatch and auto chat.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sorivoice/sori/domain/entities"
	"github.com/sorivoice/sori/domain/repositories"
	"github.com/sorivoice/sori/internal/auth"
	"github.com/sorivoice/sori/internal/channel"
	"github.com/sorivoice/sori/internal/config"
	"github.com/sorivoice/sori/internal/metrics"
)

// ErrNotConnected is returned by operations that need a live channel.
var ErrNotConnected = fmt.Errorf("not connected to the voice backend")

// Link is the subset of channel behavior the client core uses. Satisfied
// by *channel.Channel.
type Link interface {
	Connect()
	Close()
	Send(v interface{}) error
	State() channel.State
	IsOpen() bool
}

// Deps carries the client's collaborators
type Deps struct {
	Logger   *zap.Logger
	Events   repositories.EventSink
	Store    repositories.ChatLogStore
	Recorder repositories.Recorder
	Metrics  *metrics.Metrics
}

// Client is the voice chat client core. All state transitions run under
// one mutex; channel callbacks arrive on the channels' goroutines.
type Client struct {
	cfg      *config.Config
	logger   *zap.Logger
	events   repositories.EventSink
	store    repositories.ChatLogStore
	recorder repositories.Recorder
	metrics  *metrics.Metrics
	log      *entities.ChatLog

	conv   Link
	stream Link

	mu            sync.Mutex
	connected     bool
	streamingLive bool
	lastConvState channel.State
	lastStrState  channel.State

	transcription transcriptionState
	autoChat      autoChatState
	capture       captureState
}

// New wires a client against the real websocket channels
func New(cfg *config.Config, deps Deps) (*Client, error) {
	c, err := newCore(cfg, deps)
	if err != nil {
		return nil, err
	}

	secret := []byte(cfg.Device.JWTSecret)
	convURL, err := auth.DialURL(cfg.Server.ConversationalURL, cfg.Device.ID, secret)
	if err != nil {
		return nil, fmt.Errorf("conversational endpoint: %w", err)
	}

	chCfg := channel.Config{
		Name:           "conversational",
		URL:            convURL,
		DialTimeout:    cfg.Server.GetDialTimeout(),
		InitialBackoff: cfg.Server.GetReconnectInitialBackoff(),
		MaxBackoff:     cfg.Server.GetReconnectMaxBackoff(),
		MaxElapsedTime: cfg.Server.GetReconnectMaxElapsed(),
	}
	c.conv = channel.New(chCfg, channel.Callbacks{
		OnMessage: c.handleConversational,
		OnState:   func(s channel.State) { c.onChannelState("conversational", s) },
	}, deps.Logger)

	if cfg.Audio.StreamingEnabled {
		streamURL, err := auth.DialURL(cfg.Server.StreamingURL, cfg.Device.ID, secret)
		if err != nil {
			return nil, fmt.Errorf("streaming endpoint: %w", err)
		}
		strCfg := chCfg
		strCfg.Name = "streaming"
		strCfg.URL = streamURL
		c.stream = channel.New(strCfg, channel.Callbacks{
			OnMessage: c.handleStreaming,
			OnState:   func(s channel.State) { c.onChannelState("streaming", s) },
			OnOpen:    c.onStreamOpen,
		}, deps.Logger)
	}

	return c, nil
}

func newCore(cfg *config.Config, deps Deps) (*Client, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Events == nil {
		deps.Events = repositories.NopEventSink{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(prometheus.NewRegistry())
	}

	return &Client{
		cfg:      cfg,
		logger:   deps.Logger,
		events:   deps.Events,
		store:    deps.Store,
		recorder: deps.Recorder,
		metrics:  deps.Metrics,
		log:      entities.NewChatLog(),
		autoChat: autoChatState{
			theme:    cfg.AutoChat.Theme,
			interval: entities.ClampAutoChatInterval(cfg.AutoChat.IntervalSeconds),
		},
		lastConvState: channel.StateClosed,
		lastStrState:  channel.StateClosed,
	}, nil
}

// Start opens both channels
func (c *Client) Start() {
	c.conv.Connect()
	if c.stream != nil {
		c.stream.Connect()
	}
}

// Close stops recording, closes both channels and the store
func (c *Client) Close() error {
	c.StopRecording()

	c.conv.Close()
	if c.stream != nil {
		c.stream.Close()
	}

	if c.store != nil {
		if err := c.store.Close(); err != nil {
			return fmt.Errorf("close chat log store: %w", err)
		}
	}
	return nil
}

// Connected reports the derived connection state: the conversational
// channel is open and, when streaming is enabled, the streaming channel
// too.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Log returns the in-memory conversation log
func (c *Client) Log() *entities.ChatLog {
	return c.log
}

// History reads the persisted conversation log
func (c *Client) History(ctx context.Context, limit int) ([]entities.ChatMessage, error) {
	if c.store == nil {
		return c.log.Entries(), nil
	}
	return c.store.List(ctx, limit)
}

// ClearHistory wipes both the in-memory and the persisted log
func (c *Client) ClearHistory(ctx context.Context) error {
	c.log.Clear()
	if c.store != nil {
		if err := c.store.Clear(ctx); err != nil {
			return fmt.Errorf("clear chat log store: %w", err)
		}
	}
	return nil
}

// PlaceholderStatus describes the live transcription placeholder
type PlaceholderStatus struct {
	Text       string                  `json:"text"`
	Confidence float64                 `json:"confidence"`
	Tier       entities.ConfidenceTier `json:"tier"`
}

// AutoChatStatus describes the auto chat session state
type AutoChatStatus struct {
	State     string `json:"state"`
	SessionID string `json:"session_id,omitempty"`
	Theme     string `json:"theme"`
	Interval  int    `json:"interval"`
}

// Status is a point-in-time snapshot for the control surface
type Status struct {
	Connected        bool               `json:"connected"`
	Conversational   string             `json:"conversational"`
	Streaming        string             `json:"streaming,omitempty"`
	StreamingEnabled bool               `json:"streaming_enabled"`
	StreamingLive    bool               `json:"streaming_live"`
	Recording        bool               `json:"recording"`
	RecordingMode    string             `json:"recording_mode,omitempty"`
	AutoChat         AutoChatStatus     `json:"auto_chat"`
	Placeholder      *PlaceholderStatus `json:"placeholder,omitempty"`
}

// Status snapshots the client state
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		Connected:        c.connected,
		Conversational:   string(c.conv.State()),
		StreamingEnabled: c.cfg.Audio.StreamingEnabled,
		StreamingLive:    c.streamingLive,
		AutoChat: AutoChatStatus{
			State:    c.autoChat.state(),
			Theme:    c.autoChat.theme,
			Interval: c.autoChat.interval,
		},
	}
	if c.stream != nil {
		s.Streaming = string(c.stream.State())
	}
	if c.autoChat.session != nil {
		s.AutoChat.SessionID = c.autoChat.session.ID
	}
	if c.capture.session != nil {
		s.Recording = true
		s.RecordingMode = string(c.capture.session.Mode)
	}
	if c.transcription.active {
		s.Placeholder = &PlaceholderStatus{
			Text:       c.transcription.text,
			Confidence: c.transcription.confidence,
			Tier:       entities.TierFor(c.transcription.confidence),
		}
	}
	return s
}

// append records a message in memory, persists it, and notifies the sink.
// Persistence failures are logged but never interrupt the conversation.
func (c *Client) append(msg entities.ChatMessage) {
	c.log.Append(msg)
	if c.store != nil {
		if err := c.store.Append(context.Background(), msg); err != nil {
			c.logger.Warn("Chat log persistence failed", zap.Error(err))
		}
	}
	c.events.MessageAppended(msg)
}

// advisory surfaces a transient notice without entering the chat log
func (c *Client) advisory(text string) {
	c.metrics.Advisories.Inc()
	c.events.Advisory(text)
}
