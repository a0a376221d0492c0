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
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/credentials"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/dispatch"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/partition"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/region"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/transport"
)

// V2Uploader speaks the second-generation part protocol with an explicit
// server-side session: initialize once, upload numbered parts, complete.
// Sessions created in one region remain valid in its fallbacks, so a
// re-attached upload can finish wherever the dispatch layer lands.
type V2Uploader struct {
	dispatcher *dispatch.Dispatcher
	tokens     credentials.TokenProvider
	logger     *logrus.Entry
}

// NewV2Uploader returns a V2Uploader.
func NewV2Uploader(dispatcher *dispatch.Dispatcher, tokens credentials.TokenProvider, logger *logrus.Entry) *V2Uploader {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &V2Uploader{dispatcher: dispatcher, tokens: tokens, logger: logger}
}

func objectBase(target Target) string {
	encodedKey := base64.URLEncoding.EncodeToString([]byte(target.Key))
	return fmt.Sprintf("/buckets/%s/objects/%s/uploads", target.Bucket, encodedKey)
}

// InitSession implements MultipartUploader via POST .../uploads.
func (u *V2Uploader) InitSession(ctx context.Context, target Target, totalSize int64, targets region.Targets, stats *dispatch.RetryStats) (*Session, error) {
	req := transport.NewRequest(http.MethodPost, objectBase(target), nil)
	if err := credentials.Sign(ctx, u.tokens, req); err != nil {
		return nil, err
	}

	resp, err := u.dispatcher.DoWithStats(ctx, "init-parts", targets, req, stats)
	if err != nil {
		return nil, err
	}
	var body struct {
		UploadID string `json:"uploadId"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("decode init response: %w", err)
	}
	if body.UploadID == "" {
		return nil, fmt.Errorf("init response carries no upload id")
	}
	u.logger.Infof("Initialized upload session %s for %s/%s", body.UploadID, target.Bucket, target.Key)
	return &Session{ID: body.UploadID, Target: target, TotalSize: totalSize}, nil
}

// Reattach implements MultipartUploader, rebuilding the session from the
// recorded upload id without a network call.
func (u *V2Uploader) Reattach(target Target, totalSize int64, sessionID string) *Session {
	return &Session{ID: sessionID, Target: target, TotalSize: totalSize}
}

// UploadPart implements MultipartUploader via PUT .../uploads/<id>/<n>.
// Part numbers are 1-based on the wire.
func (u *V2Uploader) UploadPart(ctx context.Context, session *Session, part partition.Partition, data []byte, targets region.Targets, stats *dispatch.RetryStats) (PartToken, error) {
	path := fmt.Sprintf("%s/%s/%d", objectBase(session.Target), session.ID, part.Index+1)
	req := transport.NewRequest(http.MethodPut, path, data)
	req.Header.Set("Content-Type", "application/octet-stream")
	if err := credentials.Sign(ctx, u.tokens, req); err != nil {
		return PartToken{}, err
	}

	resp, err := u.dispatcher.DoWithStats(ctx, "upload-part", targets, req, stats)
	if err != nil {
		return PartToken{}, err
	}
	var body struct {
		Etag string `json:"etag"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return PartToken{}, fmt.Errorf("decode upload-part response: %w", err)
	}
	u.logger.Debugf("Uploaded part %d (%d bytes) of session %s", part.Index+1, part.Size, session.ID)
	return PartToken{Index: part.Index, Token: body.Etag, Size: part.Size}, nil
}

// Finalize implements MultipartUploader via POST .../uploads/<id> with the
// ordered part list.
func (u *V2Uploader) Finalize(ctx context.Context, session *Session, tokens []PartToken, targets region.Targets, stats *dispatch.RetryStats) (*Result, error) {
	if result := session.completedResult(); result != nil {
		return result, nil
	}

	ordered := make([]PartToken, len(tokens))
	copy(ordered, tokens)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	type wirePart struct {
		PartNumber int    `json:"partNumber"`
		Etag       string `json:"etag"`
	}
	payload := struct {
		Parts []wirePart `json:"parts"`
	}{Parts: make([]wirePart, len(ordered))}
	for i, token := range ordered {
		payload.Parts[i] = wirePart{PartNumber: token.Index + 1, Etag: token.Token}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode complete request: %w", err)
	}

	req := transport.NewRequest(http.MethodPost, fmt.Sprintf("%s/%s", objectBase(session.Target), session.ID), body)
	req.Header.Set("Content-Type", "application/json")
	if err := credentials.Sign(ctx, u.tokens, req); err != nil {
		return nil, err
	}

	resp, err := u.dispatcher.DoWithStats(ctx, "complete-parts", targets, req, stats)
	if err != nil {
		return nil, err
	}
	var respBody struct {
		Key  string `json:"key"`
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(resp.Body, &respBody); err != nil {
		return nil, fmt.Errorf("decode complete response: %w", err)
	}
	result := &Result{
		Bucket:    session.Target.Bucket,
		Key:       respBody.Key,
		Hash:      respBody.Hash,
		Size:      session.TotalSize,
		RequestID: resp.RequestID,
	}
	session.storeResult(result)
	u.logger.Infof("Completed upload session %s: %s/%s (%d bytes)", session.ID, result.Bucket, result.Key, result.Size)
	return result, nil
}
