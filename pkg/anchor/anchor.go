// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package anchor fetches an optional external timestamp token for a
// certificate's already-computed signable bytes. It is the only
// package in this module that contacts a remote service (pkg/health
// only queries the local daemon); neither the
// certificate Builder nor the Verifier imports it, keeping offline
// verification intact regardless of whether an anchor was ever
// requested.
package anchor

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stratastor/logger"

	vwerrors "github.com/coldforge/veriwipe/pkg/errors"
)

const defaultUserAgent = "veriwipe-anchor-client"

// Client requests a timestamp token from an RFC-3161-style TSA
// endpoint. It deliberately owns its own minimal resty client rather
// than reusing pkg/httpclient's general-purpose wrapper: the signed,
// offline-verifiable core must stay decoupled from the broader HTTP
// helper surface other commands use.
type Client struct {
	logger logger.Logger
	http   *resty.Client
	tsaURL string
}

// Config configures the anchor Client. Empty TSAURL disables
// anchoring: NewClient returns nil, nil in that case so callers can
// treat a nil *Client as "anchoring not configured" without a
// separate enabled flag.
type Config struct {
	TSAURL  string
	Timeout time.Duration
}

// NewClient builds a Client for cfg.TSAURL, or returns (nil, nil) if
// no TSA URL is configured.
func NewClient(l logger.Logger, cfg Config) (*Client, error) {
	if cfg.TSAURL == "" {
		return nil, nil
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	http := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("User-Agent", defaultUserAgent)

	return &Client{logger: l, http: http, tsaURL: cfg.TSAURL}, nil
}

// tsaRequest is the body sent to the configured TSA endpoint: the
// SHA-256 digest of the certificate's canonical signable bytes,
// base64-encoded, plus a nonce for replay resistance.
type tsaRequest struct {
	DigestAlgorithm string `json:"digest_algorithm"`
	DigestB64       string `json:"digest_b64"`
	Nonce           string `json:"nonce"`
}

// tsaResponse is the expected shape of a timestamp token response.
type tsaResponse struct {
	Token     string `json:"token"`
	IssuedAt  string `json:"issued_at"`
	Authority string `json:"authority"`
}

// Anchor submits digest (the SHA-256 of a certificate's canonical
// bytes) to the configured TSA and returns an opaque token string
// suitable for Certificate.Anchor. It never mutates or re-signs the
// certificate; the anchor is attached by the caller after Sign.
func (c *Client) Anchor(ctx context.Context, digest []byte, nonce string) (string, error) {
	if c == nil {
		return "", vwerrors.New(vwerrors.CertificateAnchorFailed, "anchor client not configured")
	}

	req := tsaRequest{
		DigestAlgorithm: "SHA-256",
		DigestB64:       base64.StdEncoding.EncodeToString(digest),
		Nonce:           nonce,
	}

	var resp tsaResponse
	r, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(c.tsaURL)
	if err != nil {
		return "", vwerrors.Wrap(err, vwerrors.CertificateAnchorFailed).
			WithMetadata("tsa_url", c.tsaURL)
	}
	if r.IsError() {
		return "", vwerrors.New(vwerrors.CertificateAnchorFailed, "TSA returned an error response").
			WithMetadata("tsa_url", c.tsaURL).
			WithMetadata("status", fmt.Sprintf("%d", r.StatusCode()))
	}
	if resp.Token == "" {
		return "", vwerrors.New(vwerrors.CertificateAnchorFailed, "TSA response carried no token").
			WithMetadata("tsa_url", c.tsaURL)
	}

	c.logger.Info("external timestamp anchor obtained",
		"tsa_url", c.tsaURL,
		"authority", resp.Authority)

	return resp.Token, nil
}
