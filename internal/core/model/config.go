package model

import "time"

// StopwatchConfig contains runtime settings for the stopwatch engine.
type StopwatchConfig struct {
	TickInterval time.Duration
}

// BroadcastConfig describes the WebSocket broadcast endpoint.
type BroadcastConfig struct {
	Enabled bool
	Host    string
	Port    int
	Path    string

	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
	AllowedOrigins []string
}

// RelayConfig describes the optional NATS relay. An empty URL disables it.
type RelayConfig struct {
	URL     string
	Subject string
}

// HostConfig contains behavior switches for the host application.
type HostConfig struct {
	RemoteControl bool
	ShowOverlay   bool
}
