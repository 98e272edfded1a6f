package env_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/huddle/internal/env"
)

var _ = Describe("env", func() {
	Describe("LoadConfigFrom()", func() {
		It("fills in defaults", func() {
			config, err := env.LoadConfigFrom(context.Background(), map[string]string{})
			Expect(err).To(Succeed())

			Expect(config.ServerAddr).To(BeEmpty())
			Expect(config.RequestTimeout).To(Equal(10 * time.Second))
			Expect(config.DisconnectTimeout).To(Equal(5 * time.Second))
			Expect(config.DisconnectPoll).To(Equal(100 * time.Millisecond))
			Expect(config.DispatchWorkers).To(Equal(8))
			Expect(config.MaxFrameSize).To(Equal(1 << 20))
			Expect(config.LogLevel).To(Equal("info"))
			Expect(config.DebugHTTP).To(BeFalse())
		})

		It("reads overrides", func() {
			config, err := env.LoadConfigFrom(context.Background(), map[string]string{
				"HUDDLE_SERVER_ADDR":     "ws://chat.example.com/ws",
				"HUDDLE_REQUEST_TIMEOUT": "3s",
				"HUDDLE_DEBUG_HTTP":      "true",
			})
			Expect(err).To(Succeed())

			Expect(config.ServerAddr).To(Equal("ws://chat.example.com/ws"))
			Expect(config.RequestTimeout).To(Equal(3 * time.Second))
			Expect(config.DebugHTTP).To(BeTrue())
		})

		It("rejects values of the wrong type", func() {
			_, err := env.LoadConfigFrom(context.Background(), map[string]string{
				"HUDDLE_DISPATCH_WORKERS": "many",
			})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("MakeLogger()", func() {
		It("accepts zap levels", func() {
			log, err := env.MakeLogger("debug")
			Expect(err).To(Succeed())
			Expect(log.Core().Enabled(-1)).To(BeTrue())
		})

		It("rejects unknown levels", func() {
			_, err := env.MakeLogger("loud")
			Expect(err).To(HaveOccurred())
		})
	})
})
