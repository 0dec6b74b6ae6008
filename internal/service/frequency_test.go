package service_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"groupwarden.app/warden/internal/service"
)

func spaced(interval time.Duration, n int) []string {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	out := make([]string, n)
	for i := range out {
		out[i] = base.Add(time.Duration(i) * interval).Format(time.RFC3339)
	}
	return out
}

var _ = Describe("FrequencyScore", func() {
	const tau = 60.0

	DescribeTable("maps posting cadence onto [0, 1]",
		func(timestamps []string, matcher OmegaMatcher) {
			Expect(service.FrequencyScore(timestamps, tau)).To(matcher)
		},
		Entry("no timestamps", nil, BeZero()),
		Entry("a single timestamp", spaced(time.Second, 1), BeZero()),
		Entry("five messages ten seconds apart score high", spaced(10*time.Second, 5), BeNumerically(">", 0.8)),
		Entry("messages ten minutes apart score near zero", spaced(10*time.Minute, 5), BeNumerically("<", 0.01)),
		Entry("messages one minute apart land mid-range", spaced(time.Minute, 5), BeNumerically("~", 0.367, 0.01)),
		Entry("all unparseable timestamps", []string{"garbage", "also garbage"}, BeZero()),
		Entry("duplicates collapse to zero gaps", []string{
			"2025-06-01T12:00:00Z", "2025-06-01T12:00:00Z", "2025-06-01T12:00:00Z",
		}, BeZero()),
	)

	It("ignores unparseable entries among valid ones", func() {
		stamps := append(spaced(10*time.Second, 5), "not a time")
		Expect(service.FrequencyScore(stamps, tau)).To(BeNumerically(">", 0.8))
	})

	It("is order-insensitive", func() {
		stamps := spaced(10*time.Second, 5)
		reversed := make([]string, len(stamps))
		for i, s := range stamps {
			reversed[len(stamps)-1-i] = s
		}
		Expect(service.FrequencyScore(reversed, tau)).To(Equal(service.FrequencyScore(stamps, tau)))
	})

	It("accepts zone-less timestamps", func() {
		stamps := []string{
			"2025-06-01T12:00:00",
			"2025-06-01T12:00:10",
			"2025-06-01T12:00:20",
		}
		Expect(service.FrequencyScore(stamps, 60)).To(BeNumerically(">", 0.8))
	})
})
