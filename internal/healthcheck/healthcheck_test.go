package healthcheck_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/engagement-relay/internal/healthcheck"
	"github.com/angeloszaimis/engagement-relay/internal/metrics"
	"github.com/angeloszaimis/engagement-relay/pkg/logger"
)

var _ = Describe("Monitor", func() {
	var (
		server *httptest.Server
		status atomic.Int32
		probes atomic.Int32
	)

	BeforeEach(func() {
		status.Store(http.StatusOK)
		probes.Store(0)
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			probes.Add(1)
			w.WriteHeader(int(status.Load()))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("should start in the unknown state", func() {
		monitor := healthcheck.NewMonitor(logger.Discard(), server.URL+"/health", time.Second, nil)
		Expect(monitor.State()).To(Equal(healthcheck.StateUnknown))
		Expect(monitor.State().String()).To(Equal("unknown"))
	})

	It("should mark a 200 response healthy", func() {
		monitor := healthcheck.NewMonitor(logger.Discard(), server.URL+"/health", time.Second, nil)
		Expect(monitor.Probe(context.Background())).To(BeTrue())
		Expect(monitor.State()).To(Equal(healthcheck.StateHealthy))
	})

	It("should mark any other status unhealthy", func() {
		status.Store(http.StatusNoContent)
		monitor := healthcheck.NewMonitor(logger.Discard(), server.URL+"/health", time.Second, nil)
		Expect(monitor.Probe(context.Background())).To(BeFalse())
		Expect(monitor.State()).To(Equal(healthcheck.StateUnhealthy))
	})

	It("should mark an unreachable upstream unhealthy", func() {
		target := server.URL + "/health"
		server.Close()

		monitor := healthcheck.NewMonitor(logger.Discard(), target, time.Second, nil)
		Expect(monitor.Probe(context.Background())).To(BeFalse())
		Expect(monitor.State().String()).To(Equal("unhealthy"))
	})

	It("should recover when the upstream comes back", func() {
		monitor := healthcheck.NewMonitor(logger.Discard(), server.URL+"/health", time.Second, nil)

		status.Store(http.StatusServiceUnavailable)
		monitor.Probe(context.Background())
		Expect(monitor.State()).To(Equal(healthcheck.StateUnhealthy))

		status.Store(http.StatusOK)
		monitor.Probe(context.Background())
		Expect(monitor.State()).To(Equal(healthcheck.StateHealthy))
	})

	It("should publish state changes to the collector", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		collector := metrics.NewCollector(10, logger.Discard())
		collector.Start(ctx)

		monitor := healthcheck.NewMonitor(logger.Discard(), server.URL+"/health", time.Second, collector)
		monitor.Probe(ctx)

		Eventually(func() string {
			return collector.Snapshot(server.URL).Upstream.State
		}).Should(Equal(metrics.UpstreamHealthy))
	})

	It("should probe on every tick until cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		monitor := healthcheck.NewMonitor(logger.Discard(), server.URL+"/health", 20*time.Millisecond, nil)

		done := make(chan struct{})
		go func() {
			defer close(done)
			monitor.Run(ctx)
		}()

		Eventually(probes.Load).Should(BeNumerically(">=", 3))
		cancel()
		Eventually(done).Should(BeClosed())
		Expect(monitor.State()).To(Equal(healthcheck.StateHealthy))
	})
})
