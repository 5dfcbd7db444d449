package tracing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// TracingIngress opens a server span per request, joining the caller's trace when the request carries one.
// The span is renamed to the matched route template once the handlers have run.
func TracingIngress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tracer := opentracing.GlobalTracer()
		spanCtx, _ := tracer.Extract(opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(ctx.Request.Header))
		serverSpan := tracer.StartSpan(ctx.Request.Method+" "+ctx.Request.URL.Path, ext.RPCServerOption(spanCtx))
		defer serverSpan.Finish()

		ext.HTTPMethod.Set(serverSpan, ctx.Request.Method)
		ext.HTTPUrl.Set(serverSpan, ctx.Request.RequestURI)

		ctx.Request = ctx.Request.WithContext(opentracing.ContextWithSpan(ctx.Request.Context(), serverSpan))

		ctx.Next()

		if route := ctx.FullPath(); route != "" {
			serverSpan.SetOperationName(ctx.Request.Method + " " + route)
		}
		status := ctx.Writer.Status()
		ext.HTTPStatusCode.Set(serverSpan, uint16(status))
		if status >= http.StatusInternalServerError {
			ext.Error.Set(serverSpan, true)
		}
	}
}
