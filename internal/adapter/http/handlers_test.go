package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkiradani/daotomata-hotel-agent/internal/config"
	"github.com/mkiradani/daotomata-hotel-agent/internal/domain"
	"github.com/mkiradani/daotomata-hotel-agent/internal/port/hotelstore"
	"github.com/mkiradani/daotomata-hotel-agent/internal/port/llm"
	"github.com/mkiradani/daotomata-hotel-agent/internal/port/platform"
	"github.com/mkiradani/daotomata-hotel-agent/internal/service"
)

type stubLLM struct{}

func (stubLLM) Complete(context.Context, llm.CompletionRequest) (string, error) {
	return "Certainly, the pool is open from 7am to 9pm.", nil
}

type stubAssessor struct{}

func (stubAssessor) Assess(context.Context, string, string, string) (float64, []string, error) {
	return 0.9, nil, nil
}

type stubPlatform struct{}

func (stubPlatform) SendMessage(context.Context, string, int, string) (*platform.SendResult, error) {
	return &platform.SendResult{MessageID: 1}, nil
}

func (stubPlatform) SendPrivateNote(context.Context, string, int, string) (*platform.SendResult, error) {
	return &platform.SendResult{MessageID: 1}, nil
}

func (stubPlatform) SetStatus(context.Context, string, int, string) error { return nil }

func (stubPlatform) GetStatus(context.Context, string, int) (*platform.ConversationStatus, error) {
	return &platform.ConversationStatus{Status: platform.StatusOpen}, nil
}

type stubHotels struct{}

func (stubHotels) GetHotelContext(_ context.Context, hotelID string) (*hotelstore.HotelContext, error) {
	if hotelID != "h1" {
		return nil, domain.ErrNotFound
	}
	return &hotelstore.HotelContext{
		HotelID:  "h1",
		Name:     "Hotel Mar Azul",
		Chatwoot: &hotelstore.ChatwootCredentials{BaseURL: "http://cw", AccessToken: "t", AccountID: 1},
	}, nil
}

func (stubHotels) GetHotelInfo(context.Context, string) (string, error)   { return "info", nil }
func (stubHotels) GetActivities(context.Context, string) (string, error) { return "acts", nil }
func (stubHotels) GetFacilities(context.Context, string) (string, error) { return "facs", nil }

func newTestServer(t *testing.T) (*httptest.Server, *service.Pipeline) {
	t.Helper()

	hotels := stubHotels{}
	router := service.NewRouter(stubLLM{}, hotels, "test-model", time.Second)
	evaluator := service.NewEvaluator(stubAssessor{}, time.Second)
	escalation := service.NewEscalationManager(stubPlatform{},
		config.Escalation{Enabled: true, Threshold: 0.7},
		config.Pipeline{QueueCapacity: 8, EventTTL: time.Minute, PlatformTimeout: time.Second, StatusRetries: 1, StatusBackoff: time.Millisecond},
	)
	pipeline := service.NewPipeline(router, evaluator, escalation, hotels, nil, nil, nil, time.Minute, 8)
	chat := service.NewChatService(router, evaluator, escalation)

	h := NewHandlers(pipeline, chat, escalation, hotels, nil, nil)

	r := chi.NewRouter()
	MountRoutes(r, h, config.Webhook{})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, pipeline
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

const guestMessagePayload = `{
	"event": "message_created",
	"id": 7,
	"content": "Is the pool open?",
	"message_type": "incoming",
	"conversation": {"id": 42},
	"sender": {"type": "contact", "name": "Ana"}
}`

func TestWebhookEndpointAccepts(t *testing.T) {
	srv, pipeline := newTestServer(t)

	resp := postJSON(t, srv.URL+"/webhook/chatwoot/h1", guestMessagePayload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[map[string]string](t, resp)
	if body["status"] != "accepted" {
		t.Errorf("status = %q, want accepted", body["status"])
	}

	pipeline.WaitIdle()
}

func TestWebhookEndpointDuplicate(t *testing.T) {
	srv, pipeline := newTestServer(t)

	_ = postJSON(t, srv.URL+"/webhook/chatwoot/h1", guestMessagePayload)
	resp := postJSON(t, srv.URL+"/webhook/chatwoot/h1", guestMessagePayload)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[map[string]string](t, resp)
	if body["status"] != "duplicate" {
		t.Errorf("status = %q, want duplicate", body["status"])
	}

	pipeline.WaitIdle()
}

func TestWebhookEndpointIgnoresAgentTraffic(t *testing.T) {
	srv, pipeline := newTestServer(t)

	payload := strings.Replace(guestMessagePayload, `"incoming"`, `"outgoing"`, 1)
	resp := postJSON(t, srv.URL+"/webhook/chatwoot/h1", payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want acknowledged 200", resp.StatusCode)
	}
	body := decode[map[string]string](t, resp)
	if body["status"] != "ignored" {
		t.Errorf("status = %q, want ignored", body["status"])
	}

	pipeline.WaitIdle()
}

func TestWebhookTestEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/webhook/chatwoot/test/h1")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["chatwoot_configured"] != true {
		t.Error("expected chatwoot_configured true")
	}

	missing, err := http.Get(srv.URL + "/webhook/chatwoot/test/nope")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = missing.Body.Close() }()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", missing.StatusCode)
	}
}

func TestChatEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/chat", `{"message":"Is the pool open?","hotel_id":"h1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decode[service.ChatResponse](t, resp)
	if body.SessionID == "" {
		t.Error("session_id missing")
	}
	if body.Message == "" {
		t.Error("message missing")
	}
	if body.ResponderUsed == "" {
		t.Error("responder_used missing")
	}
}

func TestChatEndpointValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/chat", `{"hotel_id":"h1"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStatsEndpoints(t *testing.T) {
	srv, pipeline := newTestServer(t)

	_ = postJSON(t, srv.URL+"/webhook/chatwoot/h1", guestMessagePayload)
	pipeline.WaitIdle()

	resp, err := http.Get(srv.URL + "/api/v1/escalations/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	global := decode[map[string]any](t, resp)
	if global["turns_processed"].(float64) != 1 {
		t.Errorf("turns_processed = %v, want 1", global["turns_processed"])
	}

	tenant, err := http.Get(srv.URL + "/api/v1/escalations/stats/h1")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = tenant.Body.Close() }()
	ts := decode[map[string]any](t, tenant)
	if ts["hotel_id"] != "h1" {
		t.Errorf("hotel_id = %v", ts["hotel_id"])
	}
}

func TestForceEscalateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/escalations/force", `{"hotel_id":"h1","conversation_id":42,"reason":"guest asked for a human"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	missing := postJSON(t, srv.URL+"/api/v1/escalations/force", `{"hotel_id":"h1","reason":"x"}`)
	if missing.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without conversation_id", missing.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}
