// Copyright © 2025 Accord Labs Limited.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package http is a keys API client that fetches registry data over HTTP.
package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	zerologger "github.com/rs/zerolog/log"
)

// Service is a keys API client.
type Service struct {
	baseURL     *url.URL
	client      *http.Client
	timeout     time.Duration
	pageSize    uint64
	retryPolicy RetryPolicy
}

// module-wide log.
var log zerolog.Logger

// New creates a new keys API client.
func New(ctx context.Context, params ...Parameter) (*Service, error) {
	parameters, err := parseAndCheckParameters(params...)
	if err != nil {
		return nil, errors.Wrap(err, "problem with parameters")
	}

	// Set logging.
	log = zerologger.With().Str("service", "keysapi").Str("impl", "http").Logger()
	if parameters.logLevel != log.GetLevel() {
		log = log.Level(parameters.logLevel)
	}

	if err := registerMetrics(ctx, parameters.monitor); err != nil {
		return nil, errors.New("failed to register metrics")
	}

	baseURL, err := url.Parse(parameters.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base URL")
	}

	// Set up a client connection.
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	if len(parameters.clientCert) > 0 {
		log.Trace().Msg("Adding client certificate")
		cert, err := tls.X509KeyPair(parameters.clientCert, parameters.clientKey)
		if err != nil {
			return nil, errors.New("invalid client certificate or key")
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if len(parameters.caCert) > 0 {
		log.Trace().Msg("Adding CA certificate")
		caCertPool := x509.NewCertPool()
		caCertPool.AppendCertsFromPEM(parameters.caCert)
		tlsConfig.RootCAs = caCertPool
	}

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}

	s := &Service{
		baseURL:     baseURL,
		client:      client,
		timeout:     parameters.timeout,
		pageSize:    parameters.pageSize,
		retryPolicy: parameters.retryPolicy,
	}

	return s, nil
}
