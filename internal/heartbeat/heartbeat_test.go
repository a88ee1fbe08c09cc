package heartbeat

import (
	"context"
	"os"
	"path"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Heartbeat", func() {
	Context("create a new heartbeat", func() {
		It("should be ok", func() {
			tmpDir, err := os.MkdirTemp("", "heartbeat")
			Expect(err).To(BeNil())
			defer os.RemoveAll(tmpDir)

			hb, err := New(tmpDir, time.Second)
			Expect(err).To(BeNil())
			Expect(hb.Path()).To(Equal(path.Join(tmpDir, "_heartbeat.txt")))
		})

		It("should fail -- debug folder missing", func() {
			_, err := New("some_unknown_folder", time.Second)
			Expect(err).NotTo(BeNil())
		})

		It("should append to an existing file", func() {
			tmpDir, err := os.MkdirTemp("", "heartbeat")
			Expect(err).To(BeNil())
			defer os.RemoveAll(tmpDir)

			previous := "[2026-08-23T09:00:00Z] started\n"
			Expect(os.WriteFile(path.Join(tmpDir, "_heartbeat.txt"), []byte(previous), 0644)).To(Succeed())

			hb, err := New(tmpDir, time.Second)
			Expect(err).To(BeNil())

			closeCh := make(chan chan any)
			hb.Start(context.TODO(), closeCh)

			c := make(chan any, 1)
			closeCh <- c
			<-c

			content, err := os.ReadFile(hb.Path())
			Expect(err).To(BeNil())
			Expect(strings.HasPrefix(string(content), previous)).To(BeTrue())
			Expect(string(content)).To(ContainSubstring("started"))
			Expect(string(content)).To(ContainSubstring("stopped"))
		})
	})

	Context("lifecycle", func() {
		var (
			hb     *Heartbeat
			tmpDir string
		)

		BeforeEach(func() {
			var err error
			tmpDir, err = os.MkdirTemp("", "heartbeat")
			Expect(err).To(BeNil())

			hb, err = New(tmpDir, 100*time.Millisecond)
			Expect(err).To(BeNil())
		})

		AfterEach(func() {
			os.RemoveAll(tmpDir)
		})

		It("should still serve the stop handshake after context cancellation", func() {
			ctx, cancel := context.WithCancel(context.Background())
			closeCh := make(chan chan any)
			hb.Start(ctx, closeCh)

			cancel()
			<-time.After(200 * time.Millisecond)

			done := make(chan struct{})
			go func() {
				c := make(chan any, 1)
				closeCh <- c
				<-c
				close(done)
			}()
			Eventually(done, time.Second).Should(BeClosed())

			content, err := os.ReadFile(hb.Path())
			Expect(err).To(BeNil())
			Expect(string(content)).To(ContainSubstring("stopped"))
		})

		It("should beat while running and close cleanly", func() {
			closeCh := make(chan chan any)
			hb.Start(context.TODO(), closeCh)

			<-time.After(350 * time.Millisecond)

			c := make(chan any, 1)
			closeCh <- c
			<-c

			content, err := os.ReadFile(hb.Path())
			Expect(err).To(BeNil())

			lines := strings.Split(strings.TrimSpace(string(content)), "\n")
			Expect(len(lines)).To(BeNumerically(">=", 3))
			Expect(lines[0]).To(ContainSubstring("started"))
			Expect(lines[len(lines)-1]).To(ContainSubstring("stopped"))
			for _, line := range lines[1 : len(lines)-1] {
				Expect(line).To(ContainSubstring("alive"))
			}
		})
	})
})
