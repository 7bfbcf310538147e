// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/reelswipe/reelswipe/internal/auth"
	"github.com/reelswipe/reelswipe/internal/catalog"
	"github.com/reelswipe/reelswipe/internal/config"
	"github.com/reelswipe/reelswipe/internal/domain"
	"github.com/reelswipe/reelswipe/internal/models"
	"github.com/reelswipe/reelswipe/internal/pool"
	"github.com/reelswipe/reelswipe/internal/rooms"
	"github.com/reelswipe/reelswipe/internal/storage"
	"github.com/reelswipe/reelswipe/internal/testinfra"
	"github.com/reelswipe/reelswipe/internal/tmdb"
	"github.com/reelswipe/reelswipe/internal/websocket"
)

func testSecurity() config.SecurityConfig {
	return config.SecurityConfig{
		AuthMode:        "none",
		RateLimitReqs:   1000,
		RateLimitWindow: time.Minute,
		CORSOrigins:     []string{"*"},
	}
}

func testPoolConfig() config.PoolConfig {
	return config.PoolConfig{
		MoviesPerRoom:              50,
		MaxGenres:                  2,
		WesternLanguages:           []string{"en", "es", "fr"},
		MinOverviewLength:          20,
		PlaceholderOverviewPhrases: []string{"no description available"},
		InappropriateKeywords:      []string{"xxx"},
		MinVoteCount:               50,
		MinReleaseYear:             1990,
		MaxPagesPerTier:            5,
		BuildTimeout:               5 * time.Second,
	}
}

func testTMDBConfig(baseURL string) config.TMDBConfig {
	return config.TMDBConfig{
		BaseURL:                 baseURL,
		APIKey:                  "test-key",
		Language:                "en-US",
		RateLimitMsPerCall:      1,
		RetryBaseMs:             1,
		RetryMaxMs:              5,
		RetryAttempts:           2,
		CircuitFailureThreshold: 3,
		CircuitResetMs:          60000,
		CallTimeout:             2 * time.Second,
	}
}

func testRoomsConfig() config.RoomsConfig {
	return config.RoomsConfig{
		TTL:                    24 * time.Hour,
		SweepInterval:          time.Minute,
		VoteTimeout:            2 * time.Second,
		BatchWindowSize:        10,
		MatchNotificationTopic: "rooms.matches",
	}
}

func testServer(t *testing.T) (*httptest.Server, *testinfra.FakeProvider) {
	t.Helper()
	return testServerOpts(t, testSecurity(), func() error { return nil })
}

// testServerOpts wires the full router over in-memory infrastructure and
// a fake provider seeded with sixty strict-tier movies from ID 1000.
func testServerOpts(t *testing.T, sec config.SecurityConfig, ready func() error) (*httptest.Server, *testinfra.FakeProvider) {
	t.Helper()
	store := storage.NewMemoryStore(nil)
	provider := testinfra.NewFakeProvider(t)
	provider.SetPages(testinfra.TierStrict, testinfra.Page(testinfra.Movies(1000, 60), 1, 1))
	client := tmdb.New(testTMDBConfig(provider.URL()))
	builder := pool.NewBuilder(store, client, testPoolConfig())
	cat := catalog.NewService(store, testRoomsConfig().BatchWindowSize, testPoolConfig().MoviesPerRoom)
	roomSvc := rooms.NewService(store, builder, cat, testRoomsConfig(), testPoolConfig().MaxGenres)
	h := NewHandlers(roomSvc, cat, client, websocket.NewHub(), ready)
	srv := httptest.NewServer(NewRouter(sec, auth.New(sec), h))
	t.Cleanup(srv.Close)
	return srv, provider
}

// doRequest sends a JSON request and decodes the response envelope.
func doRequest(t *testing.T, srv *httptest.Server, method, path, user string, body interface{}) (int, models.APIResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if user != "" {
		req.Header.Set(auth.UserIDHeader, user)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var envelope models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope for %s %s: %v", method, path, err)
	}
	return resp.StatusCode, envelope
}

func dataField(t *testing.T, envelope models.APIResponse, field string) interface{} {
	t.Helper()
	obj, ok := envelope.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data is %T, want object", envelope.Data)
	}
	return obj[field]
}

func errorCode(t *testing.T, envelope models.APIResponse) string {
	t.Helper()
	if envelope.Error == nil {
		t.Fatalf("envelope has no error: %+v", envelope)
	}
	return envelope.Error.Code
}

func createRoomAPI(t *testing.T, srv *httptest.Server, capacity int) (roomID, inviteCode string) {
	t.Helper()
	status, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/rooms", "host", map[string]interface{}{
		"name":       "Movie night",
		"media_type": "MOVIE",
		"genres":     []int{28, 80},
		"capacity":   capacity,
	})
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, envelope %+v", status, envelope)
	}
	roomID, _ = dataField(t, envelope, "id").(string)
	inviteCode, _ = dataField(t, envelope, "invite_code").(string)
	if roomID == "" || inviteCode == "" {
		t.Fatalf("create returned id=%q invite_code=%q", roomID, inviteCode)
	}
	return roomID, inviteCode
}

func TestCreateRoomHandler(t *testing.T) {
	srv, _ := testServer(t)

	status, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/rooms", "host", map[string]interface{}{
		"name":       "Movie night",
		"media_type": "MOVIE",
		"genres":     []int{28, 80},
		"capacity":   3,
	})
	if status != http.StatusCreated {
		t.Fatalf("status = %d, want 201", status)
	}
	if envelope.Status != "success" {
		t.Fatalf("envelope status = %q", envelope.Status)
	}
	if got := dataField(t, envelope, "status"); got != string(models.RoomWaiting) {
		t.Fatalf("room status = %v, want WAITING", got)
	}
	if got := dataField(t, envelope, "member_count"); got != float64(1) {
		t.Fatalf("member_count = %v, want 1", got)
	}
	if envelope.Metadata.RequestID == "" {
		t.Fatal("metadata request_id empty")
	}
	if envelope.Metadata.Timestamp.IsZero() {
		t.Fatal("metadata timestamp empty")
	}
}

func TestCreateRoomRejectsInvalidPayload(t *testing.T) {
	srv, _ := testServer(t)

	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"capacity zero", map[string]interface{}{"name": "n", "media_type": "MOVIE", "capacity": 0}},
		{"capacity above limit", map[string]interface{}{"name": "n", "media_type": "MOVIE", "capacity": 17}},
		{"bad media type", map[string]interface{}{"name": "n", "media_type": "BOOK", "capacity": 2}},
		{"too many genres", map[string]interface{}{"name": "n", "media_type": "MOVIE", "genres": []int{1, 2, 3}, "capacity": 2}},
		{"missing name", map[string]interface{}{"media_type": "MOVIE", "capacity": 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/rooms", "host", tc.body)
			if status != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", status)
			}
			if code := errorCode(t, envelope); code != string(domain.KindValidation) {
				t.Fatalf("code = %q, want VALIDATION", code)
			}
		})
	}
}

func TestCreateRoomRejectsMalformedJSON(t *testing.T) {
	srv, _ := testServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/rooms", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set(auth.UserIDHeader, "host")
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCreateRoomInsufficientContent(t *testing.T) {
	srv, provider := testServer(t)
	provider.SetPages(testinfra.TierStrict, testinfra.Page(testinfra.Movies(1000, 30), 1, 1))

	status, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/rooms", "host", map[string]interface{}{
		"name":       "Sparse",
		"media_type": "MOVIE",
		"genres":     []int{28, 80},
		"capacity":   2,
	})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", status)
	}
	if code := errorCode(t, envelope); code != string(domain.KindInsufficientContent) {
		t.Fatalf("code = %q, want INSUFFICIENT_CONTENT", code)
	}
}

func TestJoinRoomHandler(t *testing.T) {
	srv, _ := testServer(t)
	roomID, invite := createRoomAPI(t, srv, 3)

	status, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/rooms/join", "guest", map[string]string{"invite_code": invite})
	if status != http.StatusOK {
		t.Fatalf("join by invite status = %d, envelope %+v", status, envelope)
	}
	if got := dataField(t, envelope, "member_count"); got != float64(2) {
		t.Fatalf("member_count = %v, want 2", got)
	}

	status, envelope = doRequest(t, srv, http.MethodPost, "/api/v1/rooms/join", "guest2", map[string]string{"room_id": roomID})
	if status != http.StatusOK {
		t.Fatalf("join by room id status = %d, envelope %+v", status, envelope)
	}
	if got := dataField(t, envelope, "member_count"); got != float64(3) {
		t.Fatalf("member_count = %v, want 3", got)
	}
}

func TestJoinRoomRejectsAmbiguousReference(t *testing.T) {
	srv, _ := testServer(t)
	roomID, invite := createRoomAPI(t, srv, 3)

	status, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/rooms/join", "guest", map[string]string{
		"invite_code": invite,
		"room_id":     roomID,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if code := errorCode(t, envelope); code != string(domain.KindValidation) {
		t.Fatalf("code = %q, want VALIDATION", code)
	}

	status, _ = doRequest(t, srv, http.MethodPost, "/api/v1/rooms/join", "guest", map[string]string{})
	if status != http.StatusBadRequest {
		t.Fatalf("empty reference status = %d, want 400", status)
	}
}

func TestJoinRoomErrors(t *testing.T) {
	srv, _ := testServer(t)
	_, invite := createRoomAPI(t, srv, 3)

	status, envelope := doRequest(t, srv, http.MethodPost, "/api/v1/rooms/join", "guest", map[string]string{"invite_code": "ZZZZ22"})
	if status != http.StatusNotFound {
		t.Fatalf("unknown invite status = %d", status)
	}
	if code := errorCode(t, envelope); code != string(domain.KindNotFound) {
		t.Fatalf("code = %q, want NOT_FOUND", code)
	}

	status, envelope = doRequest(t, srv, http.MethodPost, "/api/v1/rooms/join", "host", map[string]string{"invite_code": invite})
	if status != http.StatusConflict {
		t.Fatalf("rejoin status = %d, want 409", status)
	}
	if code := errorCode(t, envelope); code != string(domain.KindAlreadyMember) {
		t.Fatalf("code = %q, want ALREADY_MEMBER", code)
	}
}

func TestRoomDetailRequiresMembership(t *testing.T) {
	srv, _ := testServer(t)
	roomID, _ := createRoomAPI(t, srv, 3)

	status, envelope := doRequest(t, srv, http.MethodGet, "/api/v1/rooms/"+roomID, "host", nil)
	if status != http.StatusOK {
		t.Fatalf("member get status = %d", status)
	}
	if got := dataField(t, envelope, "id"); got != roomID {
		t.Fatalf("room id = %v", got)
	}

	status, envelope = doRequest(t, srv, http.MethodGet, "/api/v1/rooms/"+roomID, "stranger", nil)
	if status != http.StatusForbidden {
		t.Fatalf("stranger get status = %d, want 403", status)
	}
	if code := errorCode(t, envelope); code != string(domain.KindNotMember) {
		t.Fatalf("code = %q, want NOT_MEMBER", code)
	}

	status, _ = doRequest(t, srv, http.MethodGet, "/api/v1/rooms/no-such-room", "host", nil)
	if status != http.StatusNotFound {
		t.Fatalf("unknown room status = %d, want 404", status)
	}
}

func TestCastVoteHandler(t *testing.T) {
	srv, _ := testServer(t)
	roomID, invite := createRoomAPI(t, srv, 2)
	if status, _ := doRequest(t, srv, http.MethodPost, "/api/v1/rooms/join", "guest", map[string]string{"invite_code": invite}); status != http.StatusOK {
		t.Fatalf("join status = %d", status)
	}

	votePath := "/api/v1/rooms/" + roomID + "/votes"
	status, envelope := doRequest(t, srv, http.MethodPost, votePath, "host", map[string]interface{}{"item_id": 1000, "decision": "YES"})
	if status != http.StatusCreated {
		t.Fatalf("vote status = %d, envelope %+v", status, envelope)
	}
	if got := dataField(t, envelope, "decision"); got != string(models.DecisionYes) {
		t.Fatalf("decision = %v", got)
	}

	// Same decision again is an idempotent retry.
	if status, _ = doRequest(t, srv, http.MethodPost, votePath, "host", map[string]interface{}{"item_id": 1000, "decision": "YES"}); status != http.StatusCreated {
		t.Fatalf("retry status = %d, want 201", status)
	}

	status, envelope = doRequest(t, srv, http.MethodPost, votePath, "host", map[string]interface{}{"item_id": 1000, "decision": "NO"})
	if status != http.StatusConflict {
		t.Fatalf("conflicting vote status = %d, want 409", status)
	}
	if code := errorCode(t, envelope); code != string(domain.KindAlreadyVoted) {
		t.Fatalf("code = %q, want ALREADY_VOTED", code)
	}

	if status, _ = doRequest(t, srv, http.MethodPost, votePath, "host", map[string]interface{}{"item_id": 1001, "decision": "MAYBE"}); status != http.StatusBadRequest {
		t.Fatalf("bad decision status = %d, want 400", status)
	}

	status, envelope = doRequest(t, srv, http.MethodPost, votePath, "host", map[string]interface{}{"item_id": 999999, "decision": "YES"})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("foreign item status = %d, want 422", status)
	}
	if code := errorCode(t, envelope); code != string(domain.KindItemNotInRoom) {
		t.Fatalf("code = %q, want ITEM_NOT_IN_ROOM", code)
	}

	status, envelope = doRequest(t, srv, http.MethodPost, votePath, "stranger", map[string]interface{}{"item_id": 1000, "decision": "YES"})
	if status != http.StatusForbidden {
		t.Fatalf("stranger vote status = %d, want 403", status)
	}
	if code := errorCode(t, envelope); code != string(domain.KindNotMember) {
		t.Fatalf("code = %q, want NOT_MEMBER", code)
	}
}

func TestNextEntryAndProgress(t *testing.T) {
	srv, _ := testServer(t)
	roomID, invite := createRoomAPI(t, srv, 2)
	if status, _ := doRequest(t, srv, http.MethodPost, "/api/v1/rooms/join", "guest", map[string]string{"invite_code": invite}); status != http.StatusOK {
		t.Fatalf("join failed")
	}

	status, envelope := doRequest(t, srv, http.MethodGet, "/api/v1/rooms/"+roomID+"/next", "host", nil)
	if status != http.StatusOK {
		t.Fatalf("next status = %d", status)
	}
	entry, ok := dataField(t, envelope, "entry").(map[string]interface{})
	if !ok {
		t.Fatalf("entry = %v", dataField(t, envelope, "entry"))
	}
	if entry["sequence_index"] != float64(0) || entry["item_id"] != float64(1000) {
		t.Fatalf("first entry = %+v, want index 0 item 1000", entry)
	}

	if status, _ = doRequest(t, srv, http.MethodPost, "/api/v1/rooms/"+roomID+"/votes", "host", map[string]interface{}{"item_id": 1000, "decision": "NO"}); status != http.StatusCreated {
		t.Fatalf("vote failed")
	}

	// The voted entry is skipped.
	_, envelope = doRequest(t, srv, http.MethodGet, "/api/v1/rooms/"+roomID+"/next", "host", nil)
	entry, _ = dataField(t, envelope, "entry").(map[string]interface{})
	if entry["item_id"] != float64(1001) {
		t.Fatalf("next entry = %+v, want item 1001", entry)
	}

	_, envelope = doRequest(t, srv, http.MethodGet, "/api/v1/rooms/"+roomID+"/progress", "host", nil)
	if got := dataField(t, envelope, "voted_count"); got != float64(1) {
		t.Fatalf("voted_count = %v, want 1", got)
	}
	if got := dataField(t, envelope, "total"); got != float64(50) {
		t.Fatalf("total = %v, want 50", got)
	}
	if got := dataField(t, envelope, "remaining"); got != float64(49) {
		t.Fatalf("remaining = %v, want 49", got)
	}
}

func TestMatchEndpointBeforeMatch(t *testing.T) {
	srv, _ := testServer(t)
	roomID, _ := createRoomAPI(t, srv, 3)

	status, envelope := doRequest(t, srv, http.MethodGet, "/api/v1/rooms/"+roomID+"/match", "host", nil)
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
	if code := errorCode(t, envelope); code != string(domain.KindNotFound) {
		t.Fatalf("code = %q, want NOT_FOUND", code)
	}
}

func TestLeaveRoomHandler(t *testing.T) {
	srv, _ := testServer(t)
	roomID, invite := createRoomAPI(t, srv, 3)
	if status, _ := doRequest(t, srv, http.MethodPost, "/api/v1/rooms/join", "guest", map[string]string{"invite_code": invite}); status != http.StatusOK {
		t.Fatalf("join failed")
	}

	status, envelope := doRequest(t, srv, http.MethodDelete, "/api/v1/rooms/"+roomID+"/members/me", "guest", nil)
	if status != http.StatusOK {
		t.Fatalf("leave status = %d", status)
	}
	if got := dataField(t, envelope, "room_id"); got != roomID {
		t.Fatalf("room_id = %v", got)
	}

	status, envelope = doRequest(t, srv, http.MethodDelete, "/api/v1/rooms/"+roomID+"/members/me", "guest", nil)
	if status != http.StatusForbidden {
		t.Fatalf("second leave status = %d, want 403", status)
	}
	if code := errorCode(t, envelope); code != string(domain.KindNotMember) {
		t.Fatalf("code = %q, want NOT_MEMBER", code)
	}
}

func TestListGenresHandler(t *testing.T) {
	srv, _ := testServer(t)

	status, envelope := doRequest(t, srv, http.MethodGet, "/api/v1/genres", "host", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	genres, ok := dataField(t, envelope, "genres").([]interface{})
	if !ok || len(genres) == 0 {
		t.Fatalf("genres = %v", dataField(t, envelope, "genres"))
	}

	_, envelope = doRequest(t, srv, http.MethodGet, "/api/v1/genres?media_type=TV", "host", nil)
	genres, _ = dataField(t, envelope, "genres").([]interface{})
	found := false
	for _, g := range genres {
		if entry, ok := g.(map[string]interface{}); ok && entry["id"] == float64(10759) {
			found = true
		}
	}
	if !found {
		t.Fatalf("TV genres missing 10759: %v", genres)
	}
}

func TestAPIRequiresIdentity(t *testing.T) {
	srv, _ := testServer(t)

	status, envelope := doRequest(t, srv, http.MethodGet, "/api/v1/genres", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}
	if code := errorCode(t, envelope); code != string(domain.KindUnauthorized) {
		t.Fatalf("code = %q, want UNAUTHORIZED", code)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	srv, _ := testServer(t)

	status, envelope := doRequest(t, srv, http.MethodGet, "/healthz", "", nil)
	if status != http.StatusOK || envelope.Status != "success" {
		t.Fatalf("healthz = %d %+v", status, envelope)
	}
	status, _ = doRequest(t, srv, http.MethodGet, "/readyz", "", nil)
	if status != http.StatusOK {
		t.Fatalf("readyz = %d", status)
	}

	down, _ := testServerOpts(t, testSecurity(), func() error {
		return domain.E(domain.KindTransient, "store unreachable")
	})
	status, envelope = doRequest(t, down, http.MethodGet, "/readyz", "", nil)
	if status != http.StatusServiceUnavailable {
		t.Fatalf("readyz while down = %d, want 503", status)
	}
	if code := errorCode(t, envelope); code != string(domain.KindTransient) {
		t.Fatalf("code = %q, want TRANSIENT", code)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	srv, _ := testServer(t)

	// Drive one instrumented request so request counters have samples.
	if status, _ := doRequest(t, srv, http.MethodGet, "/healthz", "", nil); status != http.StatusOK {
		t.Fatalf("healthz failed")
	}

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !bytes.Contains(body, []byte("reelswipe_")) {
		t.Fatal("metrics exposition carries no service metrics")
	}
}

func TestRateLimitEnforced(t *testing.T) {
	sec := testSecurity()
	sec.RateLimitReqs = 2
	srv, _ := testServerOpts(t, sec, func() error { return nil })

	var last int
	for i := 0; i < 3; i++ {
		resp, err := srv.Client().Get(srv.URL + "/healthz")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", last)
	}
}
