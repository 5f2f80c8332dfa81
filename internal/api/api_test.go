package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlot/openlot/core/internal/api/recovery"
	"github.com/openlot/openlot/core/internal/cache"
	"github.com/openlot/openlot/core/internal/chat"
	"github.com/openlot/openlot/core/internal/completions"
	"github.com/openlot/openlot/core/internal/config"
	"github.com/openlot/openlot/core/internal/features"
	"github.com/openlot/openlot/core/internal/interactions"
	"github.com/openlot/openlot/core/internal/model"
	"github.com/openlot/openlot/core/internal/rank"
	"github.com/openlot/openlot/core/internal/services"
	"github.com/openlot/openlot/core/internal/store"
	"github.com/openlot/openlot/core/internal/store/sqlite"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return s.vec, s.err
}

type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(_ context.Context, _ []completions.Message) (string, error) {
	return s.reply, s.err
}

// newTestServer stands up the full route table over an in-memory SQLite
// store with stubbed model providers, mirroring the production wiring.
func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	cfg := config.NewForTesting()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	c := cache.NewMemory()

	fs := features.NewStore(st.Vehicles(), cfg.CacheTTL)
	agg := interactions.NewAggregator(st.Interactions(), c, cfg.CacheTTL, cfg.PopularityLambda())

	popularity := rank.NewPopularityRanker(agg, fs, cfg.RatingPriorWeight)
	similarity := rank.NewSimilarityRanker(fs)
	personalized := rank.NewPersonalizationRanker(agg, fs, c, rank.ProfileParams{
		Window:     cfg.ProfileWindow,
		MinHistory: cfg.MinHistory,
		Lambda:     cfg.ProfileLambda(),
		Alpha:      cfg.ProfileAlpha,
		CacheTTL:   cfg.CacheTTL,
	})
	hybrid := rank.NewHybridComposer(popularity, personalized, similarity, fs, rank.FusionWeights{
		Popularity:   cfg.PopularityWeight,
		Personalized: cfg.PersonalizedWeight,
		Similarity:   cfg.SimilarityWeight,
	}, cfg.DiversityCapDivisor)

	engine := chat.NewEngine(st.Conversations(), st.Messages(), st.Vehicles(),
		&stubEmbedder{vec: []float32{1, 0, 0}},
		&stubCompleter{reply: "The Toyota Corolla is a solid pick."},
		similarity, chat.Params{
			RetrievalK:    cfg.RetrievalK,
			ContextWindow: cfg.ContextWindow,
			MaxCitations:  cfg.MaxCitations,
		}, zerolog.Nop())

	root := mux.NewRouter()
	root.Use(recovery.Middleware)

	interactionHandler := NewInteractionHandler(services.NewInteractionService(agg))
	root.HandleFunc("/api/interactions", interactionHandler.Record).Methods("POST")

	rec := NewRecommendationHandler(services.NewRecommendationService(popularity, similarity, personalized, hybrid, fs, agg))
	root.HandleFunc("/api/recommendations/popular", rec.Popular).Methods("GET")
	root.HandleFunc("/api/recommendations/similar/{vehicleId}", rec.Similar).Methods("GET")
	root.HandleFunc("/api/recommendations/personalized/{userId}", rec.Personalized).Methods("GET")
	root.HandleFunc("/api/recommendations/hybrid", rec.Hybrid).Methods("GET")
	root.HandleFunc("/api/recommendations/refresh", rec.Refresh).Methods("POST")

	chatHandler := NewChatHandler(services.NewChatService(engine, st.Conversations(), st.Messages()))
	root.HandleFunc("/api/chat/messages", chatHandler.SendMessage).Methods("POST")
	root.HandleFunc("/api/chat/conversations", chatHandler.ListConversations).Methods("GET")
	root.HandleFunc("/api/chat/conversations/{conversationId}/messages", chatHandler.ListMessages).Methods("GET")
	root.HandleFunc("/api/chat/conversations/{conversationId}", chatHandler.DeleteConversation).Methods("DELETE")

	healthHandler := NewHealthHandler(func() bool { return true })
	root.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")

	srv := httptest.NewServer(root)
	t.Cleanup(srv.Close)
	return srv, st
}

func seedVehicle(t *testing.T, st store.Store, id, brand, mdl string, price float64, emb []float32, age time.Duration) {
	t.Helper()
	err := st.Vehicles().Upsert(context.Background(), &model.Vehicle{
		VehicleID: id,
		Brand:     brand,
		Model:     mdl,
		Condition: "used",
		Price:     price,
		Mileage:   50000,
		Rating:    4.0,
		Embedding: emb,
		CreatedAt: time.Now().UTC().Add(-age),
	})
	require.NoError(t, err)
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body interface{}, out interface{}) int {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type listResponse struct {
	Vehicles []model.ScoredVehicle `json:"vehicles"`
	Count    int                   `json:"count"`
}

func TestAPI_PopularEmptyCatalog(t *testing.T) {
	srv, _ := newTestServer(t)

	var out listResponse
	code := getJSON(t, srv.URL+"/api/recommendations/popular", &out)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, out.Count)
}

func TestAPI_PopularNewestFirstWithoutInteractions(t *testing.T) {
	srv, st := newTestServer(t)
	seedVehicle(t, st, "veh-old", "Toyota", "Corolla", 18000, nil, 48*time.Hour)
	seedVehicle(t, st, "veh-new", "Honda", "Civic", 21000, nil, time.Hour)

	var out listResponse
	code := getJSON(t, srv.URL+"/api/recommendations/popular", &out)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 2, out.Count)
	assert.Equal(t, "veh-new", out.Vehicles[0].VehicleID)
	assert.Equal(t, "veh-old", out.Vehicles[1].VehicleID)
}

func TestAPI_RecordInteractionLiftsPopularity(t *testing.T) {
	srv, st := newTestServer(t)
	seedVehicle(t, st, "veh-a", "Toyota", "Corolla", 18000, nil, 48*time.Hour)
	seedVehicle(t, st, "veh-b", "Honda", "Civic", 21000, nil, time.Hour)

	code := postJSON(t, srv.URL+"/api/interactions", map[string]interface{}{
		"vehicleId": "veh-a",
		"type":      "favorite",
	}, nil)
	require.Equal(t, http.StatusAccepted, code)

	// Drop cached aggregates so the new event is visible immediately.
	resp, err := http.Post(srv.URL+"/api/recommendations/refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var out listResponse
	getJSON(t, srv.URL+"/api/recommendations/popular", &out)
	require.Equal(t, 2, out.Count)
	assert.Equal(t, "veh-a", out.Vehicles[0].VehicleID)
}

func TestAPI_RecordInteractionUnknownType(t *testing.T) {
	srv, _ := newTestServer(t)

	var out map[string]interface{}
	code := postJSON(t, srv.URL+"/api/interactions", map[string]interface{}{
		"vehicleId": "veh-a",
		"type":      "teleport",
	}, &out)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", out["code"])
}

func TestAPI_SimilarUnknownVehicle(t *testing.T) {
	srv, _ := newTestServer(t)

	var out map[string]interface{}
	code := getJSON(t, srv.URL+"/api/recommendations/similar/veh-missing", &out)
	require.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", out["code"])
}

func TestAPI_SimilarOrdersByEmbedding(t *testing.T) {
	srv, st := newTestServer(t)
	seedVehicle(t, st, "veh-seed", "Toyota", "Corolla", 18000, []float32{1, 0, 0}, time.Hour)
	seedVehicle(t, st, "veh-near", "Toyota", "Camry", 24000, []float32{0.9, 0.1, 0}, time.Hour)
	seedVehicle(t, st, "veh-far", "Honda", "Civic", 21000, []float32{0, 1, 0}, time.Hour)

	var out listResponse
	code := getJSON(t, srv.URL+"/api/recommendations/similar/veh-seed", &out)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 2, out.Count)
	assert.Equal(t, "veh-near", out.Vehicles[0].VehicleID)
	assert.Equal(t, "veh-far", out.Vehicles[1].VehicleID)
}

func TestAPI_PersonalizedColdUser(t *testing.T) {
	srv, _ := newTestServer(t)

	var out map[string]interface{}
	code := getJSON(t, srv.URL+"/api/recommendations/personalized/u-cold", &out)
	require.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "no_history", out["code"])
}

func TestAPI_HybridColdUserDegradesToPopularity(t *testing.T) {
	srv, st := newTestServer(t)
	seedVehicle(t, st, "veh-a", "Toyota", "Corolla", 18000, []float32{1, 0, 0}, 48*time.Hour)
	seedVehicle(t, st, "veh-b", "Honda", "Civic", 21000, []float32{0, 1, 0}, time.Hour)

	var out listResponse
	code := getJSON(t, srv.URL+"/api/recommendations/hybrid?userId=u-cold", &out)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, out.Count)
}

func TestAPI_InvalidLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	var out map[string]interface{}
	code := getJSON(t, srv.URL+"/api/recommendations/popular?limit=abc", &out)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestAPI_ChatTurnAndHistory(t *testing.T) {
	srv, st := newTestServer(t)
	seedVehicle(t, st, "veh-seed", "Toyota", "Corolla", 18000, []float32{1, 0, 0}, time.Hour)

	userID := "u-chat"
	var turn model.ChatTurnResult
	code := postJSON(t, srv.URL+"/api/chat/messages", map[string]interface{}{
		"userId": userID,
		"text":   "What compact cars do you have?",
	}, &turn)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, turn.ConversationID)
	require.NotEmpty(t, turn.MessageID)
	assert.Equal(t, "The Toyota Corolla is a solid pick.", turn.ResponseText)
	require.Len(t, turn.Vehicles, 1)
	assert.Equal(t, "veh-seed", turn.Vehicles[0].VehicleID)

	var convs struct {
		Conversations []model.ConversationSummary `json:"conversations"`
		Count         int                         `json:"count"`
	}
	code = getJSON(t, fmt.Sprintf("%s/api/chat/conversations?userId=%s", srv.URL, userID), &convs)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, convs.Count)
	assert.Equal(t, turn.ConversationID, convs.Conversations[0].ConversationID)

	var msgs struct {
		Messages []model.Message `json:"messages"`
		Count    int             `json:"count"`
	}
	code = getJSON(t, fmt.Sprintf("%s/api/chat/conversations/%s/messages", srv.URL, turn.ConversationID), &msgs)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 2, msgs.Count)
	assert.Equal(t, model.RoleUser, msgs.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, msgs.Messages[1].Role)

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/chat/conversations/%s", srv.URL, turn.ConversationID), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var out map[string]interface{}
	code = getJSON(t, fmt.Sprintf("%s/api/chat/conversations/%s/messages", srv.URL, turn.ConversationID), &out)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAPI_ChatEmptyMessage(t *testing.T) {
	srv, _ := newTestServer(t)

	var out map[string]interface{}
	code := postJSON(t, srv.URL+"/api/chat/messages", map[string]interface{}{
		"text": "",
	}, &out)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", out["code"])
}

func TestAPI_ChatConversationsRequireUser(t *testing.T) {
	srv, _ := newTestServer(t)

	var out map[string]interface{}
	code := getJSON(t, srv.URL+"/api/chat/conversations", &out)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestAPI_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	var out map[string]interface{}
	code := getJSON(t, srv.URL+"/api/health", &out)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", out["status"])
}
