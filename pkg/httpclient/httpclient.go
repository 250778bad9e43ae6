// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package httpclient is a thin resty.Client wrapper scoped to what
// veriwipe actually talks HTTP to: the local "serve" daemon's own API,
// checked by the "health" CLI command against 127.0.0.1 over plain
// HTTP. It carries no TLS, auth or cookie configuration surface,
// because nothing in veriwipe's local-host health check needs any of
// that.
package httpclient

import (
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/coldforge/veriwipe/internal/constants"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultRetryCount    = 3
	defaultRetryWaitTime = 2 * time.Second
	defaultUserAgent     = "veriwipe-agent"
)

// Client wraps resty.Client, embedding it so callers can still reach
// the full resty.Request surface (hc.Client.R()...) for the one-off
// GET a health check needs.
type Client struct {
	*resty.Client
}

// ClientConfig configures a Client against the local daemon's API.
type ClientConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RetryCount    int
	RetryWaitTime time.Duration
	UserAgent     string
	Debug         bool
}

// NewClientConfig returns a ClientConfig with sensible defaults for a
// same-host request to the veriwipe daemon.
func NewClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:       defaultTimeout,
		RetryCount:    defaultRetryCount,
		RetryWaitTime: defaultRetryWaitTime,
		UserAgent:     defaultUserAgent + "/" + constants.Version,
	}
}

// NewClient builds a resty-backed Client from config.
func NewClient(config ClientConfig) *Client {
	restyClient := resty.New().
		SetTimeout(config.Timeout).
		SetRetryCount(config.RetryCount).
		SetRetryWaitTime(config.RetryWaitTime)

	if config.UserAgent != "" {
		restyClient.SetHeader("User-Agent", config.UserAgent)
	}
	if config.BaseURL != "" {
		restyClient.SetBaseURL(config.BaseURL)
	}

	if config.Debug {
		restyClient.SetDebug(true)
	} else {
		// Suppress resty's own request/response logging; the caller
		// logs what it needs through its own logger.Logger.
		restyClient.SetLogger(noOpLogger{})
	}

	return &Client{Client: restyClient}
}

// noOpLogger discards resty's internal logging.
type noOpLogger struct{}

func (noOpLogger) Errorf(format string, v ...interface{}) {}
func (noOpLogger) Warnf(format string, v ...interface{})  {}
func (noOpLogger) Debugf(format string, v ...interface{}) {}
