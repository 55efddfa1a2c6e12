package cmd

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/sarchlab/mmusim/lang"
	"github.com/sarchlab/mmusim/mem/addressing"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	addSettingFlags(cmd.Flags())

	return cmd
}

var _ = Describe("Config resolution", func() {
	var cmd *cobra.Command

	BeforeEach(func() {
		cmd = newSettingsCmd()
		GinkgoT().Setenv(envBitMode, "")
		GinkgoT().Setenv(envConfig, "")
	})

	It("should default to the Bit64 preset", func() {
		cfg, err := resolveConfig(cmd)

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(addressing.MustPreset(addressing.Bit64)))
	})

	It("should read the bit-mode from the environment", func() {
		GinkgoT().Setenv(envBitMode, "Bit16")

		cfg, err := resolveConfig(cmd)

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.BitMode).To(Equal(addressing.Bit16))
	})

	It("should prefer the flag over the environment", func() {
		GinkgoT().Setenv(envBitMode, "Bit16")
		Expect(cmd.Flags().Set("bitmode", "Bit8")).To(Succeed())

		cfg, err := resolveConfig(cmd)

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.BitMode).To(Equal(addressing.Bit8))
	})

	It("should reject an unknown bit-mode", func() {
		Expect(cmd.Flags().Set("bitmode", "Bit12")).To(Succeed())

		_, err := resolveConfig(cmd)

		Expect(err).To(HaveOccurred())
	})

	Context("with a config file", func() {
		var path string

		BeforeEach(func() {
			data, err := addressing.Marshal(
				addressing.MustPreset(addressing.Bit32))
			Expect(err).NotTo(HaveOccurred())

			path = filepath.Join(GinkgoT().TempDir(), "mmusim.yaml")
			Expect(os.WriteFile(path, data, 0o644)).To(Succeed())
		})

		It("should load the file named in the environment", func() {
			GinkgoT().Setenv(envConfig, path)

			cfg, err := resolveConfig(cmd)

			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(addressing.MustPreset(addressing.Bit32)))
		})

		It("should reject a conflicting bit-mode flag", func() {
			Expect(cmd.Flags().Set("config", path)).To(Succeed())
			Expect(cmd.Flags().Set("bitmode", "Bit8")).To(Succeed())

			_, err := resolveConfig(cmd)

			Expect(err).To(MatchError(ContainSubstring("conflicts")))
		})
	})
})

var _ = Describe("Console", func() {
	var (
		out *bytes.Buffer
		c   *console
	)

	BeforeEach(func() {
		out = new(bytes.Buffer)
		c = newConsole(addressing.MustPreset(addressing.Bit8),
			newObservers(newSettingsCmd()), out)
	})

	It("should run commands and print the read value", func() {
		cmds, err := lang.Parse("alloc 1 0; write 0 5; read 0;")
		Expect(err).NotTo(HaveOccurred())

		Expect(c.run(cmds)).To(BeFalse())

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		Expect(lines).To(HaveLen(3))
		Expect(lines[2]).To(HaveSuffix("= 5"))
	})

	It("should stop at exit", func() {
		cmds, err := lang.Parse("exit; push 1;")
		Expect(err).NotTo(HaveOccurred())

		Expect(c.run(cmds)).To(BeTrue())
		Expect(strings.Count(out.String(), "\n")).To(Equal(1))
	})

	It("should keep going after a fault", func() {
		cmds, err := lang.Parse("pop; push 1; pop;")
		Expect(err).NotTo(HaveOccurred())

		c.run(cmds)

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		Expect(lines).To(HaveLen(3))
		Expect(lines[0]).To(ContainSubstring("error"))
		Expect(lines[2]).To(HaveSuffix("= 1"))
	})

	It("should report syntax errors line by line", func() {
		input := "push 1;\nbogus;\nexit;\npush 2;\n"

		err := replLines(c, bufio.NewScanner(strings.NewReader(input)))

		Expect(err).NotTo(HaveOccurred())
		Expect(out.String()).To(ContainSubstring("syntax error"))
		Expect(out.String()).NotTo(ContainSubstring("push 2"))
	})
})

var _ = Describe("Observers", func() {
	It("should write the JSON trace on close", func() {
		cmd := newSettingsCmd()
		path := filepath.Join(GinkgoT().TempDir(), "trace")
		Expect(cmd.Flags().Set("record-json", path)).To(Succeed())

		o := newObservers(cmd)
		c := newConsole(addressing.MustPreset(addressing.Bit8), o,
			new(bytes.Buffer))
		cmds, err := lang.Parse("push 1; pop;")
		Expect(err).NotTo(HaveOccurred())
		c.run(cmds)
		o.close()

		data, err := os.ReadFile(path + ".json")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"Request":"push 1"`))
		Expect(o.counter.Signals()).To(HaveLen(2))
	})
})
