package cmd

import (
	"bytes"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/sarchlab/mmusim/datarecording"
	"github.com/sarchlab/mmusim/tracing"
)

var _ = Describe("Trace command", func() {
	var (
		cmd  *cobra.Command
		out  bytes.Buffer
		path string
	)

	BeforeEach(func() {
		out.Reset()

		cmd = &cobra.Command{Use: "trace", RunE: runTrace}
		addTraceFlags(cmd.Flags())
		cmd.SetOut(&out)

		base := filepath.Join(GinkgoT().TempDir(), "run")
		recorder := datarecording.New(base)
		recorder.CreateTable(tracing.RequestTableName, tracing.RequestEntry{})

		for _, e := range []tracing.RequestEntry{
			{ID: "1", Machine: "M0", PID: 1, Request: "alloc", Signal: 1,
				Applied: true, Address: "v0x1000"},
			{ID: "2", Machine: "M1", PID: 2, Request: "read", Signal: 4,
				Applied: true, Fault: "AddrOutOfRange",
				Error: "address out of range"},
			{ID: "10", Machine: "M0", PID: 1, Request: "dealloc", Signal: 3,
				Reason: "NotAllocated"},
		} {
			recorder.InsertData(tracing.RequestTableName, e)
		}

		Expect(recorder.Close()).To(Succeed())

		path = base + ".sqlite3"
	})

	It("should print every request in recording order", func() {
		Expect(runTrace(cmd, []string{path})).To(Succeed())

		lines := nonEmptyLines(out.String())
		Expect(lines).To(HaveLen(5))
		Expect(lines[1]).To(ContainSubstring("alloc"))
		Expect(lines[1]).To(HaveSuffix("ok"))
		Expect(lines[2]).To(HaveSuffix("fault: AddrOutOfRange"))
		Expect(lines[3]).To(HaveSuffix("rejected: NotAllocated"))
		Expect(lines[4]).To(Equal("3 of 3 requests"))
	})

	It("should narrow to one machine", func() {
		Expect(cmd.Flags().Set("machine", "M0")).To(Succeed())
		Expect(cmd.Flags().Set("limit", "1")).To(Succeed())
		Expect(cmd.Flags().Set("offset", "1")).To(Succeed())

		Expect(runTrace(cmd, []string{path})).To(Succeed())

		lines := nonEmptyLines(out.String())
		Expect(lines).To(HaveLen(3))
		Expect(lines[1]).To(ContainSubstring("dealloc"))
		Expect(lines[2]).To(Equal("1 of 2 requests"))
	})

	It("should narrow to faulting requests", func() {
		Expect(cmd.Flags().Set("faults", "true")).To(Succeed())

		Expect(runTrace(cmd, []string{path})).To(Succeed())

		lines := nonEmptyLines(out.String())
		Expect(lines).To(HaveLen(3))
		Expect(lines[1]).To(HavePrefix("M1"))
	})

	It("should list the tables", func() {
		Expect(cmd.Flags().Set("tables", "true")).To(Succeed())

		Expect(runTrace(cmd, []string{path})).To(Succeed())

		Expect(nonEmptyLines(out.String())).To(Equal(
			[]string{"exec_info", tracing.RequestTableName}))
	})

	It("should fail on a missing database", func() {
		err := runTrace(cmd, []string{path + ".missing"})

		Expect(err).To(HaveOccurred())
	})
})

func nonEmptyLines(s string) []string {
	var lines []string

	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	return lines
}
