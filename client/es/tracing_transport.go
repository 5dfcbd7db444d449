package es

import (
	"net/http"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// TracingTransport opens a client span for every cluster request issued under a traced context.
type TracingTransport struct {
	Transport http.RoundTripper
}

func (t *TracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	parentSpan := opentracing.SpanFromContext(req.Context())
	if parentSpan == nil {
		return t.Transport.RoundTrip(req)
	}

	tracer := parentSpan.Tracer()
	span := tracer.StartSpan("es "+req.Method+" "+req.URL.Path, opentracing.ChildOf(parentSpan.Context()))
	defer span.Finish()

	ext.SpanKindRPCClient.Set(span)
	ext.HTTPUrl.Set(span, req.URL.String())
	ext.HTTPMethod.Set(span, req.Method)
	_ = tracer.Inject(span.Context(), opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(req.Header))

	res, err := t.Transport.RoundTrip(req)
	if err != nil {
		ext.Error.Set(span, true)
		span.SetTag("error.detail", err.Error())
		return res, err
	}
	ext.HTTPStatusCode.Set(span, uint16(res.StatusCode))
	ext.Error.Set(span, res.StatusCode >= 400)
	return res, nil
}
