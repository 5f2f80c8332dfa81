package storetest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/openlot/openlot/core/internal/model"
	"github.com/openlot/openlot/core/internal/store"
)

// Run exercises a minimal compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store and return it from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	userID := "u-" + uuid.New().String()
	vehA := "veh-" + uuid.New().String()
	vehB := "veh-" + uuid.New().String()

	// Vehicles
	v1 := &model.Vehicle{
		VehicleID: vehA,
		Brand:     "Toyota",
		Model:     "Corolla",
		Condition: "used",
		Price:     18500,
		Mileage:   42000,
		Rating:    4.5,
		Embedding: []float32{0.1, 0.2, 0.3},
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	if err := s.Vehicles().Upsert(ctx, v1); err != nil {
		t.Fatalf("Upsert v1: %v", err)
	}
	// no embedding: must round-trip as nil, not zero-length
	v2 := &model.Vehicle{VehicleID: vehB, Brand: "Honda", Model: "Civic", CreatedAt: time.Now().UTC()}
	if err := s.Vehicles().Upsert(ctx, v2); err != nil {
		t.Fatalf("Upsert v2: %v", err)
	}

	got, err := s.Vehicles().Get(ctx, vehA)
	if err != nil || got.Brand != "Toyota" || len(got.Embedding) != 3 {
		t.Fatalf("Get vehA: got=%+v err=%v", got, err)
	}
	if got2, err := s.Vehicles().Get(ctx, vehB); err != nil || got2.Embedding != nil {
		t.Fatalf("Get vehB: embedding=%v err=%v", got2.Embedding, err)
	}
	if _, err := s.Vehicles().Get(ctx, "nope"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get unknown: err=%v, want ErrNotFound", err)
	}
	if all, err := s.Vehicles().ListAll(ctx); err != nil || len(all) < 2 {
		t.Fatalf("ListAll: n=%d err=%v", len(all), err)
	}

	// Interactions: idempotent per dedupe key
	ev := &model.InteractionEvent{
		UserID:     &userID,
		VehicleID:  vehA,
		Type:       model.InteractionFavorite,
		OccurredAt: time.Now().UTC().Add(-10 * time.Minute),
	}
	if ok, err := s.Interactions().Record(ctx, ev); err != nil || !ok {
		t.Fatalf("Record first: ok=%v err=%v", ok, err)
	}
	if ok, err := s.Interactions().Record(ctx, ev); err != nil || ok {
		t.Fatalf("Record duplicate: ok=%v err=%v, want ok=false", ok, err)
	}
	ev2 := &model.InteractionEvent{
		UserID:     &userID,
		VehicleID:  vehB,
		Type:       model.InteractionView,
		OccurredAt: time.Now().UTC().Add(-5 * time.Minute),
	}
	if ok, err := s.Interactions().Record(ctx, ev2); err != nil || !ok {
		t.Fatalf("Record ev2: ok=%v err=%v", ok, err)
	}
	// anonymous event
	if ok, err := s.Interactions().Record(ctx, &model.InteractionEvent{
		VehicleID: vehA, Type: model.InteractionView, OccurredAt: time.Now().UTC(),
	}); err != nil || !ok {
		t.Fatalf("Record anonymous: ok=%v err=%v", ok, err)
	}

	hist, err := s.Interactions().ListForUser(ctx, userID, 10)
	if err != nil || len(hist) != 2 {
		t.Fatalf("ListForUser: n=%d err=%v", len(hist), err)
	}
	if hist[0].VehicleID != vehB {
		t.Fatalf("ListForUser order: first=%s, want %s (newest first)", hist[0].VehicleID, vehB)
	}
	if hist[1].Weight != model.InteractionFavorite.BaseWeight() {
		t.Fatalf("Record default weight: got %f", hist[1].Weight)
	}

	since, err := s.Interactions().ListSince(ctx, time.Now().UTC().Add(-time.Hour))
	if err != nil || len(since) < 3 {
		t.Fatalf("ListSince: n=%d err=%v", len(since), err)
	}

	// Conversations and messages
	conv, err := s.Conversations().Create(ctx, &model.Conversation{UserID: &userID})
	if err != nil || conv.ConversationID == "" {
		t.Fatalf("CreateConversation: conv=%+v err=%v", conv, err)
	}
	if _, err := s.Conversations().Get(ctx, conv.ConversationID); err != nil {
		t.Fatalf("GetConversation: %v", err)
	}

	m1, err := s.Messages().Create(ctx, &model.Message{
		ConversationID: conv.ConversationID, Role: model.RoleUser, Content: "looking for a hybrid under 25k",
	})
	if err != nil {
		t.Fatalf("CreateMessage user: %v", err)
	}
	m2, err := s.Messages().Create(ctx, &model.Message{
		ConversationID:  conv.ConversationID,
		Role:            model.RoleAssistant,
		Content:         "here are a few options",
		CitedVehicleIDs: []string{vehA, vehB},
	})
	if err != nil {
		t.Fatalf("CreateMessage assistant: %v", err)
	}
	if err := s.Conversations().Touch(ctx, conv.ConversationID, time.Now().UTC()); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	msgs, err := s.Messages().List(ctx, conv.ConversationID, 50)
	if err != nil || len(msgs) != 2 {
		t.Fatalf("ListMessages: n=%d err=%v", len(msgs), err)
	}
	if msgs[0].MessageID != m1.MessageID || msgs[1].MessageID != m2.MessageID {
		t.Fatalf("ListMessages order: got [%s %s]", msgs[0].MessageID, msgs[1].MessageID)
	}
	if len(msgs[1].CitedVehicleIDs) != 2 {
		t.Fatalf("cited ids round-trip: %v", msgs[1].CitedVehicleIDs)
	}

	// limit keeps the newest tail, still in transcript order
	tail, err := s.Messages().List(ctx, conv.ConversationID, 1)
	if err != nil || len(tail) != 1 {
		t.Fatalf("ListMessages tail: n=%d err=%v", len(tail), err)
	}
	if tail[0].MessageID != m2.MessageID {
		t.Fatalf("ListMessages tail: got %s, want newest %s", tail[0].MessageID, m2.MessageID)
	}

	sums, err := s.Conversations().ListForUser(ctx, userID, 10)
	if err != nil || len(sums) != 1 {
		t.Fatalf("ListForUser conversations: n=%d err=%v", len(sums), err)
	}
	if sums[0].MessageCount != 2 || sums[0].Preview != "here are a few options" {
		t.Fatalf("summary: %+v", sums[0])
	}

	// preview clips long multi-byte messages to whole runes
	long := strings.Repeat("寿", 150)
	if _, err := s.Messages().Create(ctx, &model.Message{
		ConversationID: conv.ConversationID, Role: model.RoleUser, Content: long,
	}); err != nil {
		t.Fatalf("CreateMessage long: %v", err)
	}
	sums, err = s.Conversations().ListForUser(ctx, userID, 10)
	if err != nil || len(sums) != 1 {
		t.Fatalf("ListForUser after long message: n=%d err=%v", len(sums), err)
	}
	if n := utf8.RuneCountInString(sums[0].Preview); n != store.PreviewRunes {
		t.Fatalf("preview is %d runes, want %d", n, store.PreviewRunes)
	}
	if !strings.HasPrefix(long, sums[0].Preview) {
		t.Fatalf("preview is not a prefix of the message: %q", sums[0].Preview)
	}

	// Delete cascades
	if err := s.Conversations().Delete(ctx, conv.ConversationID); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if _, err := s.Conversations().Get(ctx, conv.ConversationID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get after delete: err=%v, want ErrNotFound", err)
	}
	if left, err := s.Messages().List(ctx, conv.ConversationID, 50); err != nil || len(left) != 0 {
		t.Fatalf("messages after cascade: n=%d err=%v", len(left), err)
	}
	if err := s.Conversations().Delete(ctx, conv.ConversationID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("double delete: err=%v, want ErrNotFound", err)
	}
}
