// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

package region_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/region"
)

var _ = Describe("Endpoints", func() {
	It("orders preferred hosts before alternates", func() {
		e := region.Endpoints{
			Preferred:  []string{"up-1", "up-2"},
			Alternates: []string{"up-fallback"},
		}
		Expect(e.Hosts()).To(Equal([]string{"up-1", "up-2", "up-fallback"}))
		Expect(e.IsEmpty()).To(BeFalse())
		Expect(region.Endpoints{}.IsEmpty()).To(BeTrue())
	})
})

var _ = Describe("Region", func() {
	It("requires a name and upload endpoints", func() {
		Expect(region.Region{}.Validate()).Should(HaveOccurred())
		Expect(region.Region{Name: "r"}.Validate()).Should(HaveOccurred())
		Expect(region.Region{Name: "r", Up: region.Endpoints{Preferred: []string{"up"}}}.Validate()).To(Succeed())
	})
})

var _ = Describe("Targets", func() {
	It("keeps the home region first", func() {
		t := region.NewTargets(region.EUCentral1, region.USEast1, region.APSoutheast1)
		Expect(t.Len()).To(Equal(3))
		Expect(t.Regions()[0].Name).To(Equal("eu-central-1"))
		Expect(t.Validate()).To(Succeed())
	})

	It("rejects an empty chain", func() {
		Expect(region.Targets{}.Validate()).Should(HaveOccurred())
	})

	It("rejects a chain with an invalid member", func() {
		Expect(region.NewTargets(region.USEast1, region.Region{Name: "bad"}).Validate()).Should(HaveOccurred())
	})
})

var _ = Describe("Lookup", func() {
	It("finds built-in regions by name", func() {
		r, err := region.Lookup("ap-southeast-1")
		Expect(err).ShouldNot(HaveOccurred())
		Expect(r.Up.IsEmpty()).To(BeFalse())
	})

	It("errors on an unknown name", func() {
		_, err := region.Lookup("moon-base-1")
		Expect(err).Should(HaveOccurred())
	})
})
