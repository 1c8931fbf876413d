package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pyama86/quera/domain/model"
	"github.com/stretchr/testify/assert"
)

func TestNotifier_SubscribeAndPublish(t *testing.T) {
	t.Setenv("AMQP_URL", "")
	n, err := NewNotifier()
	assert.NoError(t, err)

	ch, cancel := n.Subscribe()
	defer cancel()

	event := model.ChangeEvent{Kind: model.ChangeInserted, Table: "queries", ID: "q1"}
	n.Publish(event)

	select {
	case got := <-ch:
		assert.Equal(t, event, got)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestNotifier_CancelStopsDelivery(t *testing.T) {
	t.Setenv("AMQP_URL", "")
	n, err := NewNotifier()
	assert.NoError(t, err)

	ch, cancel := n.Subscribe()
	cancel()
	// cancelは何度呼んでも安全
	cancel()

	n.Publish(model.ChangeEvent{Kind: model.ChangeUpdated, Table: "queries", ID: "q1"})

	_, ok := <-ch
	assert.False(t, ok)
}

func TestNotifier_PublishNeverBlocks(t *testing.T) {
	t.Setenv("AMQP_URL", "")
	n, err := NewNotifier()
	assert.NoError(t, err)

	_, cancel := n.Subscribe()
	defer cancel()

	// 誰も読まなくてもバッファを超えて詰まらない
	for i := 0; i < subscriberBuffer*2; i++ {
		n.Publish(model.ChangeEvent{Kind: model.ChangeInserted, Table: "queries", ID: "q"})
	}
}

func TestHandler_StreamEvents(t *testing.T) {
	h, _ := newTestHandler(t)
	token := login(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.Routes().ServeHTTP(rr, req)
		close(done)
	}()

	// 購読が立つまで待つ
	assert.Eventually(t, func() bool {
		h.notifier.mu.Lock()
		defer h.notifier.mu.Unlock()
		return len(h.notifier.subs) == 1
	}, time.Second, 10*time.Millisecond)

	h.notifier.Publish(model.ChangeEvent{Kind: model.ChangeInserted, Table: "queries", ID: "q1"})

	// レコーダはロックを持たないので書き込みが終わってから読む
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not terminate on context cancel")
	}

	body := rr.Body.String()
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(body, ": connected"))
	assert.Contains(t, body, "event: change")
	assert.Contains(t, body, `"id":"q1"`)
	assert.Contains(t, body, `"kind":"inserted"`)
}
