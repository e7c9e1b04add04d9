package supervisor

import (
	"testing"

	"github.com/dialogiot/foshgw/pkg/logger"
	"github.com/dialogiot/foshgw/pkg/scanner"
	"github.com/dialogiot/foshgw/pkg/streamsvc"
)

func TestHealthComposesRegistryAndSubscribers(t *testing.T) {
	registry := scanner.NewRegistry()
	subs := streamsvc.NewBroadcastSubscriberSet(logger.New(logger.Config{Level: "debug", Format: "text"}))

	h := health{registry: registry, subs: subs}
	if h.ListenersActive() != 0 {
		t.Fatalf("expected 0 listeners active, got %d", h.ListenersActive())
	}

	subs.Subscribe()
	if h.SubscribersConnected() != 1 {
		t.Fatalf("expected 1 subscriber connected, got %d", h.SubscribersConnected())
	}
}
