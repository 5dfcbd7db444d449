package tracing

import (
	"fmt"
	"io"
	"net"
	"strconv"

	"blogapi/config"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"
)

const ServiceName = "blogapi"

type noopCloser struct{}

func (noopCloser) Close() error { return nil }

// jaegerLogger routes the reporter's own diagnostics into logrus.
type jaegerLogger struct{}

func (jaegerLogger) Error(msg string) {
	logrus.WithField("component", "jaeger").Error(msg)
}

func (jaegerLogger) Infof(msg string, args ...interface{}) {
	logrus.WithField("component", "jaeger").Debugf(msg, args...)
}

// InitGlobalTracer installs a Jaeger tracer reporting to the configured agent as the opentracing global tracer.
// When tracing is disabled the noop global tracer stays in place.
func InitGlobalTracer(cfg config.TracingConfig) (io.Closer, error) {
	if !cfg.Enabled {
		logrus.Info("tracing disabled")
		return noopCloser{}, nil
	}

	jc := jaegercfg.Configuration{
		ServiceName: ServiceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 1,
		},
		Reporter: &jaegercfg.ReporterConfig{
			LocalAgentHostPort: net.JoinHostPort(cfg.AgentHost, strconv.Itoa(cfg.AgentPort)),
		},
	}
	tracer, closer, err := jc.NewTracer(
		jaegercfg.Logger(jaegerLogger{}),
		jaegercfg.Metrics(metrics.NullFactory),
	)
	if err != nil {
		return nil, fmt.Errorf("init jaeger tracer: %w", err)
	}
	opentracing.SetGlobalTracer(tracer)
	logrus.Infof("tracing enabled, reporting to %s", jc.Reporter.LocalAgentHostPort)
	return closer, nil
}
