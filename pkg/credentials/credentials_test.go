// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

package credentials_test

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/credentials"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/transport"
)

var _ = Describe("StaticToken", func() {
	It("yields its token", func() {
		token, err := credentials.StaticToken("abc").UploadToken(context.TODO())
		Expect(err).ShouldNot(HaveOccurred())
		Expect(token).To(Equal("abc"))
	})

	It("rejects an empty token", func() {
		_, err := credentials.StaticToken("").UploadToken(context.TODO())
		Expect(err).Should(HaveOccurred())
	})
})

var _ = Describe("Sign", func() {
	It("attaches the upload token to the request", func() {
		req := transport.NewRequest(http.MethodPost, "/", nil)
		Expect(credentials.Sign(context.TODO(), credentials.StaticToken("abc"), req)).To(Succeed())
		Expect(req.Header.Get(transport.HeaderAuthorization)).To(Equal("UpToken abc"))
	})

	It("propagates provider failures", func() {
		req := transport.NewRequest(http.MethodPost, "/", nil)
		Expect(credentials.Sign(context.TODO(), credentials.StaticToken(""), req)).Should(HaveOccurred())
		Expect(req.Header.Get(transport.HeaderAuthorization)).To(BeEmpty())
	})
})
