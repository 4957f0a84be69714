package progress

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/diligence-cli/internal/model"
)

func newTestHubServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		companyID := strings.TrimPrefix(r.URL.Path, "/ws/")
		hub.ServeWS(w, r, companyID)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialHub(t *testing.T, srv *httptest.Server, companyID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + companyID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSubscribers(t *testing.T, hub *Hub, companyID string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount(companyID) < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d subscribers", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDeliversEventsToSubscriber(t *testing.T) {
	hub := NewHub()
	srv := newTestHubServer(t, hub)

	conn := dialHub(t, srv, "acme")
	waitForSubscribers(t, hub, "acme", 1)

	hub.Publish(model.ProgressEvent{
		CompanyID:    "acme",
		ScoringRunID: "run-1",
		Stage:        model.StageEvaluatingPillars,
		StageName:    model.StageEvaluatingPillars.Name(),
		Progress:     42,
		Status:       model.RunStatusProcessing,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got model.ProgressEvent
	require.NoError(t, conn.ReadJSON(&got))

	assert.Equal(t, "acme", got.CompanyID)
	assert.Equal(t, "run-1", got.ScoringRunID)
	assert.Equal(t, 42, got.Progress)
	assert.Equal(t, "evaluating_scoring_pillars", got.StageName)
}

func TestHubIsolatesCompanies(t *testing.T) {
	hub := NewHub()
	srv := newTestHubServer(t, hub)

	acme := dialHub(t, srv, "acme")
	globex := dialHub(t, srv, "globex")
	waitForSubscribers(t, hub, "acme", 1)
	waitForSubscribers(t, hub, "globex", 1)

	hub.Publish(model.ProgressEvent{CompanyID: "globex", Progress: 10})
	hub.Publish(model.ProgressEvent{CompanyID: "acme", Progress: 99})

	// The acme subscriber's first message must be the acme event, never the
	// globex one.
	acme.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got model.ProgressEvent
	require.NoError(t, acme.ReadJSON(&got))
	assert.Equal(t, "acme", got.CompanyID)
	assert.Equal(t, 99, got.Progress)

	globex.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, globex.ReadJSON(&got))
	assert.Equal(t, "globex", got.CompanyID)
}

func TestHubRemovesSubscriberOnDisconnect(t *testing.T) {
	hub := NewHub()
	srv := newTestHubServer(t, hub)

	conn := dialHub(t, srv, "acme")
	waitForSubscribers(t, hub, "acme", 1)

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount("acme") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber was not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Publishing to a company with no subscribers must not panic.
	hub.Publish(model.ProgressEvent{CompanyID: "acme", Progress: 100})
}

func TestHubPublishDoesNotBlockOnSlowClient(t *testing.T) {
	hub := NewHub()
	srv := newTestHubServer(t, hub)

	dialHub(t, srv, "acme")
	waitForSubscribers(t, hub, "acme", 1)

	// Flood well past the client buffer; Publish must return promptly even
	// though the client never reads.
	done := make(chan struct{})
	go func() {
		for i := 0; i < clientBuffer*4; i++ {
			hub.Publish(model.ProgressEvent{CompanyID: "acme", Progress: i % 100})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow client")
	}
}
