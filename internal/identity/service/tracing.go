package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func identityAttr(id string) attribute.KeyValue {
	return attribute.String("identity.id", id)
}

func subCategoryAttr(sub string) attribute.KeyValue {
	return attribute.String("identity.sub_category", sub)
}

// operation starts a span and returns a finisher that records the outcome on
// the span and in the latency histogram.
func (s *Service) operation(ctx context.Context, name string, kv ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "identity."+name, trace.WithAttributes(kv...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.ObserveOperation(name, time.Since(start), err)
	}
}
