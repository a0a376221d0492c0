// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/credentials"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/dispatch"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/region"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/source"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/transport"
)

// FormUploader performs the single-shot upload: the whole source in one
// multipart/form-data POST. Used below the multipart threshold.
type FormUploader struct {
	dispatcher *dispatch.Dispatcher
	tokens     credentials.TokenProvider
	logger     *logrus.Entry
}

// NewFormUploader returns a FormUploader.
func NewFormUploader(dispatcher *dispatch.Dispatcher, tokens credentials.TokenProvider, logger *logrus.Entry) *FormUploader {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &FormUploader{dispatcher: dispatcher, tokens: tokens, logger: logger}
}

// Upload reads the whole source and posts it as one request. The read
// happens once up front, so a retried attempt re-sends the same bytes even
// for an unseekable source.
func (u *FormUploader) Upload(ctx context.Context, src source.Source, target Target, targets region.Targets, stats *dispatch.RetryStats) (*Result, error) {
	data, err := src.ReadSlice(0, src.Size())
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("key", target.Key); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	fileWriter, err := writer.CreateFormFile("file", target.Key)
	if err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if _, err := fileWriter.Write(data); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}

	req := transport.NewRequest(http.MethodPost, "/", buf.Bytes())
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if err := credentials.Sign(ctx, u.tokens, req); err != nil {
		return nil, err
	}

	resp, err := u.dispatcher.DoWithStats(ctx, "form-upload", targets, req, stats)
	if err != nil {
		return nil, err
	}
	var body struct {
		Key  string `json:"key"`
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("decode form upload response: %w", err)
	}
	u.logger.Infof("Uploaded %s/%s in a single request (%d bytes)", target.Bucket, body.Key, src.Size())
	return &Result{
		Bucket:    target.Bucket,
		Key:       body.Key,
		Hash:      body.Hash,
		Size:      src.Size(),
		RequestID: resp.RequestID,
	}, nil
}
