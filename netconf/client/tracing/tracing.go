// Package tracing reports netconf client RPCs as OpenTracing spans, using the
// client trace hooks.
package tracing

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/damianoneill/ncclient/netconf/client"
	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/rpc"
)

// Span tag names.
const (
	TagComponent = "netconf"
	TagMessageID = "netconf.message_id"
	TagSession   = "netconf.session"
	TagVersion   = "netconf.version"
	TagRPC       = "netconf.rpc"
)

type tracer struct {
	tracer opentracing.Tracer
	parent opentracing.SpanContext

	mu       sync.Mutex
	spans    map[string]opentracing.Span
	versions map[string]string
}

// OpenTracingHooks delivers trace hooks that start a span for each RPC executed
// by a session and finish it when the reply arrives or the request fails.
func OpenTracingHooks(t opentracing.Tracer) *client.ClientTrace {
	return newTracer(t, nil).hooks()
}

// ContextHooks is OpenTracingHooks with spans created as children of the span
// held by ctx, if any.
func ContextHooks(ctx context.Context, t opentracing.Tracer) *client.ClientTrace {
	var parent opentracing.SpanContext
	if span := opentracing.SpanFromContext(ctx); span != nil {
		parent = span.Context()
	}
	return newTracer(t, parent).hooks()
}

func newTracer(t opentracing.Tracer, parent opentracing.SpanContext) *tracer {
	return &tracer{
		tracer:   t,
		parent:   parent,
		spans:    make(map[string]opentracing.Span),
		versions: make(map[string]string),
	}
}

func (tr *tracer) hooks() *client.ClientTrace {
	return &client.ClientTrace{
		HelloDone: func(ref string, msg *common.HelloMessage, version string) {
			tr.mu.Lock()
			defer tr.mu.Unlock()
			tr.versions[ref] = version
		},
		StateChange: func(ref string, from, to client.State) {
			if to == client.StateClosed {
				tr.mu.Lock()
				defer tr.mu.Unlock()
				delete(tr.versions, ref)
			}
		},
		ExecuteStart: tr.executeStart,
		ExecuteDone:  tr.executeDone,
	}
}

func (tr *tracer) executeStart(ref string, req *rpc.Request, messageID string) {
	var opts []opentracing.StartSpanOption
	if tr.parent != nil {
		opts = append(opts, opentracing.ChildOf(tr.parent))
	}
	span := tr.tracer.StartSpan(req.Name, opts...)

	ext.Component.Set(span, TagComponent)
	ext.SpanKindRPCClient.Set(span)
	span.SetTag(TagRPC, req.Name)
	span.SetTag(TagMessageID, messageID)
	span.SetTag(TagSession, ref)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if v, ok := tr.versions[ref]; ok {
		span.SetTag(TagVersion, v)
	}
	tr.spans[ref+"/"+messageID] = span
}

func (tr *tracer) executeDone(ref string, req *rpc.Request, messageID string, res *common.Reply, err error, d time.Duration) {
	key := ref + "/" + messageID
	tr.mu.Lock()
	span, ok := tr.spans[key]
	delete(tr.spans, key)
	tr.mu.Unlock()
	if !ok {
		return
	}
	defer span.Finish()

	if res != nil {
		warnings := res.Warnings()
		for i := range warnings {
			logRPCError(span, "warning", &warnings[i])
		}
	}
	if err == nil {
		return
	}

	ext.Error.Set(span, true)
	var oe *common.OperationError
	if !errors.As(err, &oe) {
		span.LogFields(
			log.String("event", "error"),
			log.String("message", err.Error()),
		)
		return
	}
	span.SetTag("netconf.error_kind", oe.Kind.String())
	for i := range oe.Errors {
		if oe.Errors[i].Severity == common.SeverityError {
			logRPCError(span, "error", &oe.Errors[i])
		}
	}
}

func logRPCError(span opentracing.Span, event string, e *common.RPCError) {
	fields := []log.Field{
		log.String("event", event),
		log.String("error.tag", e.Tag),
		log.String("error.type", e.Type),
		log.String("message", e.Message),
	}
	if e.Path != "" {
		fields = append(fields, log.String("error.path", e.Path))
	}
	if e.AppTag != "" {
		fields = append(fields, log.String("error.app_tag", e.AppTag))
	}
	span.LogFields(fields...)
}
