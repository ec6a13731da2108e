package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"code_dojo/internal/app/reward"
	"code_dojo/internal/app/service"
	"code_dojo/internal/common"
	"code_dojo/internal/common/security"
	"code_dojo/internal/domain/model"
	"code_dojo/internal/domain/repository/memory"
	"code_dojo/internal/platform/config"
	"code_dojo/internal/platform/judge"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJudge struct {
	mu      sync.Mutex
	outcome judge.Outcome
	err     error
}

func (j *stubJudge) set(output string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outcome.Output = output
	j.err = err
}

func (j *stubJudge) Submit(context.Context, string, string) (*judge.Outcome, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return nil, j.err
	}
	out := j.outcome
	return &out, nil
}

type testServer struct {
	store *memory.Store
	judge *stubJudge
	srv   *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	config.AppConfig = &config.Config{JWTKey: []byte("router-secret"), JWTExp: time.Hour}
	security.InitJWT()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := memory.NewStore()
	store.SeedBadgeCatalog()
	store.PutUser(model.User{ID: "u1", Username: "ada", Email: "ada@example.com", Role: model.RoleStudent, Level: 1})
	store.PutExercise(model.Exercise{ID: "ex1", Title: "Sum", Solution: model.Solution{"5"}, TestInput: "2 3", Difficulty: model.DifficultyEasy, XPReward: 50})

	j := &stubJudge{outcome: judge.Outcome{Success: true, Message: "Accepted", Output: "5\n", StatusID: judge.StatusAccepted}}
	engine := reward.NewEngine(store.Users(), store.ProgressRepo(), store.Badges())
	board := service.NewLeaderboardService(store.Users(), rdb, "leaderboard:xp")
	svc := Services{
		Auth:         service.NewAuthService(store.Users()),
		Exercises:    service.NewExerciseService(store.Exercises(), store.Categories(), store.ProgressRepo()),
		Verification: service.NewVerificationService(store.Exercises(), store.ProgressRepo(), j, engine, store, nil),
		Users:        service.NewUserService(store.Users(), store.Exercises(), store.ProgressRepo(), store.Badges()),
		Leaderboard:  board,
		Admin:        service.NewAdminService(store.Users(), store.Exercises(), store.Categories(), store.ProgressRepo()),
	}
	srv := httptest.NewServer(NewRouter(svc, []string{"https://dojo.example"}, 5*time.Second))
	t.Cleanup(srv.Close)
	return &testServer{store: store, judge: j, srv: srv}
}

func (s *testServer) do(t *testing.T, method, path, role, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, s.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		token, err := security.GenerateToken("u1", role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	resp, _ := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestVerifyEndpoint(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/api/v1/exercises/ex1/verify", model.RoleStudent, `{"code":"int x;","time_taken":30}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["correct"])
	assert.Equal(t, float64(50), body["xp_earned"])
	assert.NotEmpty(t, body["earned_badges"])

	s.judge.set("7\n", nil)
	resp, body = s.do(t, http.MethodPost, "/api/v1/exercises/ex1/verify", model.RoleStudent, `{"code":"int y;"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["correct"])
	assert.Equal(t, "Incorrect solution", body["message"])
	assert.Equal(t, "7\n", body["output"])

	resp, _ = s.do(t, http.MethodPost, "/api/v1/exercises/missing/verify", model.RoleStudent, `{"code":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/v1/exercises/ex1/verify", "", `{"code":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/v1/exercises/ex1/verify", model.RoleStudent, `{"code":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVerifyJudgeOutageIs503(t *testing.T) {
	s := newTestServer(t)
	s.judge.set("", fmt.Errorf("judge: dial tcp 10.0.0.1:443: %w", common.ErrServiceUnavailable))

	resp, body := s.do(t, http.MethodPost, "/api/v1/exercises/ex1/verify", model.RoleStudent, `{"code":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.NotContains(t, body["error"], "dial")
	_, ok := s.store.Progress("u1", "ex1")
	assert.False(t, ok)
}

func TestExerciseAnswersHiddenFromStudents(t *testing.T) {
	s := newTestServer(t)

	_, body := s.do(t, http.MethodGet, "/api/v1/exercises/ex1", model.RoleStudent, "")
	assert.NotContains(t, body, "solution")
	assert.NotContains(t, body, "test_input")

	_, body = s.do(t, http.MethodGet, "/api/v1/exercises/ex1", model.RoleTeacher, "")
	assert.Equal(t, []any{"5"}, body["solution"])
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodGet, "/api/v1/admin/stats", model.RoleStudent, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := s.do(t, http.MethodGet, "/api/v1/admin/stats", model.RoleAdmin, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["users"])

	resp, _ = s.do(t, http.MethodDelete, "/api/v1/exercises/ex1", model.RoleTeacher, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/v1/exercises/categories", model.RoleAdmin, `{"name":"Laços de Repetição"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "lacos-de-repeticao", body["slug"])
}

func TestSignupLoginAndProfile(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", `{"username":"grace","name":"Grace","email":"grace@example.com","password":"hopper42"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, body["token"])

	resp, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"login_field":"grace","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/api/v1/users/profile", model.RoleStudent, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ada", body["username"])
	assert.NotContains(t, body, "hashed_password")
}

func TestLeaderboardEndpoint(t *testing.T) {
	s := newTestServer(t)
	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/api/v1/leaderboard?limit=5", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []model.LeaderboardEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "ada", entries[0].Username)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, s.srv.URL+"/api/v1/exercises", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dojo.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, []string{"https://dojo.example"}, resp.Header.Values("Access-Control-Allow-Origin"))
}

func (s *testServer) getJSON(t *testing.T, path, role string, dst any) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.srv.URL+path, nil)
	require.NoError(t, err)
	token, err := security.GenerateToken("u1", role)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
	}
	return resp.StatusCode
}

func TestSignupCannotPickRole(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", `{"username":"mallory","name":"Mal","email":"mal@example.com","password":"secret1","role":"teacher"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	user, _ := body["user"].(map[string]any)
	assert.Equal(t, model.RoleStudent, user["role"])
}

func TestMeAndProfileUpdate(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodGet, "/api/v1/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := s.do(t, http.MethodGet, "/api/v1/auth/me", model.RoleStudent, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ada", body["username"])
	assert.NotContains(t, body, "hashed_password")

	resp, body = s.do(t, http.MethodPut, "/api/v1/users/profile", model.RoleStudent, `{"name":"Ada Lovelace","xp":9000}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ada Lovelace", body["name"])
	assert.Equal(t, float64(0), body["xp"])

	resp, _ = s.do(t, http.MethodPut, "/api/v1/users/profile", model.RoleStudent, `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProgressViews(t *testing.T) {
	s := newTestServer(t)
	category := model.Category{ID: "c1", Name: "Basics", Slug: "basics"}
	s.store.PutCategory(category)
	s.store.PutExercise(model.Exercise{ID: "ex1", CategoryID: &category.ID, Title: "Sum", Solution: model.Solution{"5"},
		TestInput: "2 3", Difficulty: model.DifficultyEasy, XPReward: 50})

	resp, _ := s.do(t, http.MethodPost, "/api/v1/exercises/ex1/verify", model.RoleStudent, `{"code":"int x;","time_taken":30}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var days []model.DayStats
	require.Equal(t, http.StatusOK, s.getJSON(t, "/api/v1/users/stats/weekly", model.RoleStudent, &days))
	require.Len(t, days, 7)
	completed := 0
	for _, d := range days {
		completed += d.ExercisesCompleted
	}
	assert.Equal(t, 1, completed)

	var categories []model.CategoryProgress
	require.Equal(t, http.StatusOK, s.getJSON(t, "/api/v1/exercises/categories/progress", model.RoleStudent, &categories))
	require.Len(t, categories, 1)
	assert.Equal(t, model.CategoryCompletion{TotalExercises: 1, CompletedExercises: 1, Percentage: 100, TotalXP: 50}, categories[0].Progress)
}

func TestStudentStatsForTeachers(t *testing.T) {
	s := newTestServer(t)

	var stats model.UserStats
	assert.Equal(t, http.StatusForbidden, s.getJSON(t, "/api/v1/users/stats/u1", model.RoleStudent, &stats))
	require.Equal(t, http.StatusOK, s.getJSON(t, "/api/v1/users/stats/u1", model.RoleTeacher, &stats))
	assert.Equal(t, 1, stats.TotalExercises)
	assert.Equal(t, http.StatusOK, s.getJSON(t, "/api/v1/users/stats/u1", model.RoleAdmin, &stats))
	assert.Equal(t, http.StatusNotFound, s.getJSON(t, "/api/v1/users/stats/ghost", model.RoleTeacher, &stats))
}

func TestDeleteExerciseWithProgressIsRefused(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodPost, "/api/v1/exercises/ex1/verify", model.RoleStudent, `{"code":"int x;"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.do(t, http.MethodDelete, "/api/v1/exercises/ex1", model.RoleAdmin, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "users have progress")
	_, ok := s.store.Progress("u1", "ex1")
	assert.True(t, ok)
}
