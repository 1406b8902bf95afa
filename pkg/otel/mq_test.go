package otel

import (
	"sort"
	"testing"

	"github.com/rabbitmq/amqp091-go"
)

func TestHeaderCarrier(t *testing.T) {
	headers := amqp091.Table{"other": 42}
	c := HeaderCarrier(headers)

	c.Set("traceparent", "00-abc-def-01")

	if got := c.Get("traceparent"); got != "00-abc-def-01" {
		t.Errorf("Get(traceparent) = %q", got)
	}
	if got := c.Get("other"); got != "" {
		t.Errorf("non-string header should read empty, got %q", got)
	}
	if headers["traceparent"] != "00-abc-def-01" {
		t.Error("Set did not write through to the table")
	}

	keys := c.Keys()
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "other" || keys[1] != "traceparent" {
		t.Errorf("Keys = %v", keys)
	}
}

func TestHeaderCarrierNil(t *testing.T) {
	var c HeaderCarrier
	c.Set("k", "v")
	if c.Get("k") != "" {
		t.Error("nil carrier should stay empty")
	}
}
