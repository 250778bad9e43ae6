// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package health

import (
	"fmt"
	"time"

	"github.com/stratastor/logger"

	"github.com/coldforge/veriwipe/config"
	"github.com/coldforge/veriwipe/pkg/httpclient"
)

// Checker hits a running "serve" daemon's own local API surface to
// report liveness, rather than re-probing devices itself: the daemon
// it's checking already answers that question on /health.
type Checker struct {
	Client *httpclient.Client
	Logger logger.Logger
}

// NewChecker builds a Checker targeting cfg.Server.APIAddr.
func NewChecker(cfg *config.Config) *Checker {
	logConfig := config.NewLoggerConfig(cfg)
	l, err := logger.NewTag(logConfig, "health")
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}

	baseURL := fmt.Sprintf("http://%s", cfg.Server.APIAddr)
	clientConfig := httpclient.NewClientConfig()
	clientConfig.Timeout = 5 * time.Second
	clientConfig.RetryCount = 1
	clientConfig.RetryWaitTime = time.Second
	clientConfig.BaseURL = baseURL
	clientConfig.Debug = cfg.Server.LogLevel == "debug" && cfg.Environment == "dev"

	return &Checker{
		Client: httpclient.NewClient(clientConfig),
		Logger: l,
	}
}

// CheckHealth reports the daemon's /health response body, or an error
// if it's unreachable or unhealthy.
func (hc *Checker) CheckHealth() (string, error) {
	cfg := config.GetConfig()

	resp, err := hc.Client.R().Get(cfg.Health.Endpoint)
	if err != nil {
		return "", fmt.Errorf("daemon unreachable: %w", err)
	}

	if !resp.IsSuccess() {
		return "", fmt.Errorf("unhealthy: status %s, response %s", resp.Status(), resp.String())
	}

	return resp.String(), nil
}
