// SPDX-FileCopyrightText: Copyright 2025 Janee Authors
// SPDX-License-Identifier: Apache-2.0

package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/janee-ai/janee/pkg/config"
	"github.com/janee-ai/janee/pkg/errors"
)

// bybitRecvWindow is the request validity window in milliseconds.
const bybitRecvWindow = "5000"

// okxTimestampLayout is RFC3339 UTC at millisecond precision.
const okxTimestampLayout = "2006-01-02T15:04:05.000Z"

func hmacSHA256(secret, payload string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

func requireKeyPair(auth *config.AuthConfig) error {
	if auth.APIKey == "" || auth.APISecret == "" {
		return errors.NewAuthError(fmt.Sprintf("auth type %q requires apiKey and apiSecret", auth.Type), nil)
	}
	return nil
}

// signMexc appends timestamp and signature query parameters and sets the
// X-MEXC-APIKEY header. The signature is a hex HMAC-SHA256 over the query
// string including the timestamp.
func (s *Signer) signMexc(auth *config.AuthConfig, req *Request) error {
	if err := requireKeyPair(auth); err != nil {
		return err
	}

	ts := strconv.FormatInt(s.now().UnixMilli(), 10)
	req.appendQuery("timestamp=" + ts)

	signature := hex.EncodeToString(hmacSHA256(auth.APISecret, req.RawQuery))
	req.appendQuery("signature=" + signature)

	req.setHeader("X-MEXC-APIKEY", auth.APIKey)
	return nil
}

// signBybit emits the X-BAPI header set. The signed payload is the query
// string for GET/DELETE and the body for everything else.
func (s *Signer) signBybit(auth *config.AuthConfig, req *Request) error {
	if err := requireKeyPair(auth); err != nil {
		return err
	}

	ts := strconv.FormatInt(s.now().UnixMilli(), 10)

	payload := req.Body
	if req.Method == "GET" || req.Method == "DELETE" {
		payload = req.RawQuery
	}

	signature := hex.EncodeToString(hmacSHA256(auth.APISecret, ts+auth.APIKey+bybitRecvWindow+payload))

	req.setHeader("X-BAPI-API-KEY", auth.APIKey)
	req.setHeader("X-BAPI-TIMESTAMP", ts)
	req.setHeader("X-BAPI-SIGN", signature)
	req.setHeader("X-BAPI-RECV-WINDOW", bybitRecvWindow)
	return nil
}

// signOKX emits the OK-ACCESS header set. The signed payload is
// timestamp + METHOD + requestPath + body, where requestPath includes the
// query string when present.
func (s *Signer) signOKX(auth *config.AuthConfig, req *Request) error {
	if err := requireKeyPair(auth); err != nil {
		return err
	}
	if auth.Passphrase == "" {
		return errors.NewAuthError(`auth type "hmac-okx" requires a passphrase`, nil)
	}

	ts := s.now().UTC().Format(okxTimestampLayout)

	requestPath := req.Path
	if req.RawQuery != "" {
		requestPath += "?" + req.RawQuery
	}

	signature := base64.StdEncoding.EncodeToString(
		hmacSHA256(auth.APISecret, ts+req.Method+requestPath+req.Body))

	req.setHeader("OK-ACCESS-KEY", auth.APIKey)
	req.setHeader("OK-ACCESS-SIGN", signature)
	req.setHeader("OK-ACCESS-TIMESTAMP", ts)
	req.setHeader("OK-ACCESS-PASSPHRASE", auth.Passphrase)
	return nil
}
