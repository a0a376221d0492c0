// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

package recorder_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	testclock "k8s.io/utils/clock/testing"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/recorder"
)

var _ = Describe("FileRecorder", func() {
	const (
		fingerprint = "sha1:abc123"
		sourceSize  = int64(10 << 20)
		lifetime    = 7 * 24 * time.Hour
	)

	var (
		dir       string
		fakeClock *testclock.FakeClock
		rec       *recorder.FileRecorder
		meta      recorder.Metadata
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "quarkstor-recorder-*")
		Expect(err).ShouldNot(HaveOccurred())
		DeferCleanup(func() { Expect(os.RemoveAll(dir)).To(Succeed()) })

		fakeClock = testclock.NewFakeClock(time.Now())
		rec, err = recorder.NewFileRecorder(dir, fakeClock, nil)
		Expect(err).ShouldNot(HaveOccurred())
		meta = recorder.Metadata{
			Bucket:     "media",
			Key:        "videos/launch.mp4",
			SourceSize: sourceSize,
			SessionID:  "session-1",
			Region:     "us-east-1",
		}
	})

	It("returns no record for an unknown fingerprint", func() {
		record, err := rec.Load(fingerprint, sourceSize, lifetime)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(record).To(BeNil())
	})

	It("round-trips metadata and confirmed parts", func() {
		Expect(rec.Start(fingerprint, meta)).To(Succeed())
		Expect(rec.RecordPart(fingerprint, recorder.PartRecord{Index: 0, Token: "etag-0", Size: 4 << 20})).To(Succeed())
		Expect(rec.RecordPart(fingerprint, recorder.PartRecord{Index: 2, Token: "etag-2", Size: 2 << 20})).To(Succeed())

		record, err := rec.Load(fingerprint, sourceSize, lifetime)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(record).NotTo(BeNil())
		Expect(record.Metadata.Bucket).To(Equal("media"))
		Expect(record.Metadata.SessionID).To(Equal("session-1"))
		Expect(record.Parts).To(HaveLen(2))
		Expect(record.Parts[0].Index).To(Equal(0))
		Expect(record.Parts[1].Index).To(Equal(2))

		part, ok := record.Part(2)
		Expect(ok).To(BeTrue())
		Expect(part.Token).To(Equal("etag-2"))
		_, ok = record.Part(1)
		Expect(ok).To(BeFalse())
	})

	It("discards the record when the source size changed", func() {
		Expect(rec.Start(fingerprint, meta)).To(Succeed())
		Expect(rec.RecordPart(fingerprint, recorder.PartRecord{Index: 0, Token: "etag-0", Size: 4 << 20})).To(Succeed())

		record, err := rec.Load(fingerprint, sourceSize+1, lifetime)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(record).To(BeNil())
	})

	It("drops expired parts so they get re-uploaded", func() {
		Expect(rec.Start(fingerprint, meta)).To(Succeed())
		Expect(rec.RecordPart(fingerprint, recorder.PartRecord{Index: 0, Token: "etag-0", Size: 4 << 20})).To(Succeed())
		fakeClock.Step(time.Hour)
		Expect(rec.RecordPart(fingerprint, recorder.PartRecord{Index: 1, Token: "etag-1", Size: 4 << 20})).To(Succeed())

		fakeClock.Step(lifetime - 30*time.Minute)
		record, err := rec.Load(fingerprint, sourceSize, lifetime)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(record.Parts).To(HaveLen(1))
		Expect(record.Parts[0].Index).To(Equal(1))
	})

	It("ignores a torn trailing line left by a crash", func() {
		Expect(rec.Start(fingerprint, meta)).To(Succeed())
		Expect(rec.RecordPart(fingerprint, recorder.PartRecord{Index: 0, Token: "etag-0", Size: 4 << 20})).To(Succeed())

		var path string
		entries, err := os.ReadDir(dir)
		Expect(err).ShouldNot(HaveOccurred())
		for _, entry := range entries {
			if filepath.Ext(entry.Name()) == ".quarkstor-upload" {
				path = filepath.Join(dir, entry.Name())
			}
		}
		Expect(path).NotTo(BeEmpty())
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o600)
		Expect(err).ShouldNot(HaveOccurred())
		_, err = file.WriteString(`{"index":1,"tok`)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(file.Close()).To(Succeed())

		record, err := rec.Load(fingerprint, sourceSize, lifetime)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(record.Parts).To(HaveLen(1))
		Expect(record.Parts[0].Index).To(Equal(0))
	})

	It("keeps the newest entry when a part index repeats", func() {
		Expect(rec.Start(fingerprint, meta)).To(Succeed())
		Expect(rec.RecordPart(fingerprint, recorder.PartRecord{Index: 0, Token: "stale", Size: 4 << 20})).To(Succeed())
		Expect(rec.RecordPart(fingerprint, recorder.PartRecord{Index: 0, Token: "fresh", Size: 4 << 20})).To(Succeed())

		record, err := rec.Load(fingerprint, sourceSize, lifetime)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(record.Parts).To(HaveLen(1))
		Expect(record.Parts[0].Token).To(Equal("fresh"))
	})

	It("replaces any previous record on Start", func() {
		Expect(rec.Start(fingerprint, meta)).To(Succeed())
		Expect(rec.RecordPart(fingerprint, recorder.PartRecord{Index: 0, Token: "etag-0", Size: 4 << 20})).To(Succeed())

		meta.SessionID = "session-2"
		Expect(rec.Start(fingerprint, meta)).To(Succeed())

		record, err := rec.Load(fingerprint, sourceSize, lifetime)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(record.Metadata.SessionID).To(Equal("session-2"))
		Expect(record.Parts).To(BeEmpty())
	})

	It("removes the record and lock file on Finalize", func() {
		Expect(rec.Start(fingerprint, meta)).To(Succeed())
		Expect(rec.Finalize(fingerprint)).To(Succeed())

		record, err := rec.Load(fingerprint, sourceSize, lifetime)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(record).To(BeNil())

		entries, err := os.ReadDir(dir)
		Expect(err).ShouldNot(HaveOccurred())
		// Load recreates the lock file; nothing else may remain.
		for _, entry := range entries {
			Expect(filepath.Ext(entry.Name())).To(Equal(".lock"))
		}
	})

	It("tolerates Finalize without a record", func() {
		Expect(rec.Finalize("never-started")).To(Succeed())
	})

	It("isolates records by fingerprint", func() {
		Expect(rec.Start(fingerprint, meta)).To(Succeed())
		other := meta
		other.Key = "videos/other.mp4"
		Expect(rec.Start("sha1:other", other)).To(Succeed())
		Expect(rec.RecordPart("sha1:other", recorder.PartRecord{Index: 0, Token: "etag-x", Size: 1})).To(Succeed())

		record, err := rec.Load(fingerprint, sourceSize, lifetime)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(record.Parts).To(BeEmpty())
	})
})

var _ = Describe("NopRecorder", func() {
	It("never returns a record and never fails", func() {
		var rec recorder.NopRecorder
		Expect(rec.Start("fp", recorder.Metadata{})).To(Succeed())
		Expect(rec.RecordPart("fp", recorder.PartRecord{Index: 0})).To(Succeed())
		record, err := rec.Load("fp", 1, time.Hour)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(record).To(BeNil())
		Expect(rec.Finalize("fp")).To(Succeed())
	})
})
