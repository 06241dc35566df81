package federate

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/hlabridge/internal/federate"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	inbound  metric.Int64Counter
	outbound metric.Int64Counter
	dropped  metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	m := meter()
	var (
		out metrics
		err error
	)
	out.inbound, err = m.Int64Counter(
		"federate.events.inbound",
		metric.WithDescription("Federation callbacks handled"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating inbound counter: %w", err)
	}
	out.outbound, err = m.Int64Counter(
		"federate.messages.outbound",
		metric.WithDescription("Application messages sent to the federation"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating outbound counter: %w", err)
	}
	out.dropped, err = m.Int64Counter(
		"federate.messages.dropped",
		metric.WithDescription("Messages or callbacks with no usable mapping"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	return &out, nil
}

func (m *metrics) event(kind string) {
	m.inbound.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *metrics) sent(kind string) {
	m.outbound.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *metrics) drop(reason string) {
	m.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}
