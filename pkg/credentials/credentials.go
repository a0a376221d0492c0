// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package credentials supplies the upload credential attached to every
// request. Token computation (signing, policy embedding, expiry) happens in
// a collaborator outside this SDK core; here a token is an opaque string.
package credentials

import (
	"context"
	"fmt"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/transport"
)

// TokenProvider yields the upload token for the next request. Providers
// must be safe for concurrent use.
type TokenProvider interface {
	UploadToken(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider for a pre-computed token.
type StaticToken string

// UploadToken implements TokenProvider.
func (t StaticToken) UploadToken(context.Context) (string, error) {
	if t == "" {
		return "", fmt.Errorf("empty upload token")
	}
	return string(t), nil
}

// Sign attaches the provider's current token to the request.
func Sign(ctx context.Context, provider TokenProvider, req *transport.Request) error {
	token, err := provider.UploadToken(ctx)
	if err != nil {
		return fmt.Errorf("obtain upload token: %w", err)
	}
	req.Header.Set(transport.HeaderAuthorization, "UpToken "+token)
	return nil
}
