// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

package uploader

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/credentials"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/dispatch"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/partition"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/region"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/transport"
)

// V1Uploader speaks the first-generation block protocol: one mkblk call per
// part, then a single mkfile call joining the returned contexts. There is
// no server-side session; the session id only keys local bookkeeping.
type V1Uploader struct {
	dispatcher *dispatch.Dispatcher
	tokens     credentials.TokenProvider
	logger     *logrus.Entry
}

// NewV1Uploader returns a V1Uploader.
func NewV1Uploader(dispatcher *dispatch.Dispatcher, tokens credentials.TokenProvider, logger *logrus.Entry) *V1Uploader {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &V1Uploader{dispatcher: dispatcher, tokens: tokens, logger: logger}
}

// InitSession implements MultipartUploader. The v1 protocol has no init
// call; the session exists the moment the first block lands.
func (u *V1Uploader) InitSession(_ context.Context, target Target, totalSize int64, _ region.Targets, _ *dispatch.RetryStats) (*Session, error) {
	return &Session{ID: uuid.NewString(), Target: target, TotalSize: totalSize}, nil
}

// Reattach implements MultipartUploader.
func (u *V1Uploader) Reattach(target Target, totalSize int64, sessionID string) *Session {
	return &Session{ID: sessionID, Target: target, TotalSize: totalSize}
}

// UploadPart implements MultipartUploader via POST /mkblk/<size>.
func (u *V1Uploader) UploadPart(ctx context.Context, session *Session, part partition.Partition, data []byte, targets region.Targets, stats *dispatch.RetryStats) (PartToken, error) {
	req := transport.NewRequest(http.MethodPost, fmt.Sprintf("/mkblk/%d", part.Size), data)
	req.Header.Set("Content-Type", "application/octet-stream")
	if err := credentials.Sign(ctx, u.tokens, req); err != nil {
		return PartToken{}, err
	}

	resp, err := u.dispatcher.DoWithStats(ctx, "mkblk", targets, req, stats)
	if err != nil {
		return PartToken{}, err
	}
	var body struct {
		Ctx      string `json:"ctx"`
		Checksum string `json:"checksum"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return PartToken{}, fmt.Errorf("decode mkblk response: %w", err)
	}
	u.logger.Debugf("Uploaded block %d (%d bytes) of %s/%s", part.Index, part.Size, session.Target.Bucket, session.Target.Key)
	return PartToken{Index: part.Index, Token: body.Ctx, Size: part.Size}, nil
}

// Finalize implements MultipartUploader via POST /mkfile/<size>/key/<k>,
// joining the block contexts in part order.
func (u *V1Uploader) Finalize(ctx context.Context, session *Session, tokens []PartToken, targets region.Targets, stats *dispatch.RetryStats) (*Result, error) {
	if result := session.completedResult(); result != nil {
		return result, nil
	}

	ctxs := make([]string, len(tokens))
	for i, token := range tokens {
		ctxs[i] = token.Token
	}
	encodedKey := base64.URLEncoding.EncodeToString([]byte(session.Target.Key))
	req := transport.NewRequest(http.MethodPost,
		fmt.Sprintf("/mkfile/%d/key/%s", session.TotalSize, encodedKey),
		[]byte(strings.Join(ctxs, ",")))
	req.Header.Set("Content-Type", "text/plain")
	if err := credentials.Sign(ctx, u.tokens, req); err != nil {
		return nil, err
	}

	resp, err := u.dispatcher.DoWithStats(ctx, "mkfile", targets, req, stats)
	if err != nil {
		return nil, err
	}
	var body struct {
		Key  string `json:"key"`
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("decode mkfile response: %w", err)
	}
	result := &Result{
		Bucket:    session.Target.Bucket,
		Key:       body.Key,
		Hash:      body.Hash,
		Size:      session.TotalSize,
		RequestID: resp.RequestID,
	}
	session.storeResult(result)
	return result, nil
}
