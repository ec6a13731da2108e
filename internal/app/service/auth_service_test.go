package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"code_dojo/internal/common"
	"code_dojo/internal/common/security"
	"code_dojo/internal/domain/model"
	"code_dojo/internal/domain/repository/memory"
	"code_dojo/internal/platform/config"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTokens(t *testing.T) {
	t.Helper()
	config.AppConfig = &config.Config{JWTKey: []byte("test-secret"), JWTExp: time.Hour}
	security.InitJWT()
}

func TestSignupDefaultsToStudent(t *testing.T) {
	setupTokens(t)
	store := memory.NewStore()
	svc := NewAuthService(store.Users())

	resp, err := svc.Signup(context.Background(), SignupRequest{
		Username: "ada", Name: "Ada", Email: "Ada@Example.com", Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleStudent, resp.User.Role)
	assert.Equal(t, "ada@example.com", resp.User.Email)
	assert.Equal(t, 1, resp.User.Level)
	assert.Empty(t, resp.User.HashedPassword)

	token, err := jwtauth.VerifyToken(security.TokenAuth, resp.Token)
	require.NoError(t, err)
	claims, err := token.AsMap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims["user_id"])

	stored, ok := store.User(resp.User.ID)
	require.True(t, ok)
	assert.True(t, security.CheckPasswordHash("secret1", stored.HashedPassword))
}

func TestSignupValidation(t *testing.T) {
	setupTokens(t)
	svc := NewAuthService(memory.NewStore().Users())

	_, err := svc.Signup(context.Background(), SignupRequest{Username: "ab", Name: "A", Email: "nope", Password: "123"})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSignupIgnoresRequestedRole(t *testing.T) {
	setupTokens(t)
	store := memory.NewStore()
	svc := NewAuthService(store.Users())

	var req SignupRequest
	require.NoError(t, json.Unmarshal([]byte(`{"username":"eve","name":"Eve","email":"eve@example.com","password":"secret1","role":"teacher"}`), &req))
	resp, err := svc.Signup(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.RoleStudent, resp.User.Role)

	stored, ok := store.User(resp.User.ID)
	require.True(t, ok)
	assert.Equal(t, model.RoleStudent, stored.Role)
}

func TestSignupDuplicateConflicts(t *testing.T) {
	setupTokens(t)
	svc := NewAuthService(memory.NewStore().Users())
	req := SignupRequest{Username: "ada", Name: "Ada", Email: "ada@example.com", Password: "secret1"}

	_, err := svc.Signup(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.Signup(context.Background(), req)
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestLoginByEmailOrUsername(t *testing.T) {
	setupTokens(t)
	store := memory.NewStore()
	svc := NewAuthService(store.Users())
	hash, err := security.HashPassword("hopper42")
	require.NoError(t, err)
	store.PutUser(model.User{ID: "t1", Username: "grace", Name: "Grace", Email: "grace@example.com",
		HashedPassword: hash, Role: model.RoleTeacher, Level: 1})

	for _, login := range []string{"grace", "GRACE@example.com"} {
		resp, err := svc.Login(context.Background(), LoginRequest{LoginField: login, Password: "hopper42"})
		require.NoError(t, err, login)
		assert.Equal(t, model.RoleTeacher, resp.User.Role)
		assert.NotEmpty(t, resp.Token)
	}

	_, err = svc.Login(context.Background(), LoginRequest{LoginField: "grace", Password: "wrong"})
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = svc.Login(context.Background(), LoginRequest{LoginField: "nobody", Password: "hopper42"})
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestMeHidesPasswordHash(t *testing.T) {
	store := memory.NewStore()
	store.PutUser(model.User{ID: "u1", Username: "ada", HashedPassword: "hash", Role: model.RoleStudent, Level: 1})
	svc := NewAuthService(store.Users())

	u, err := svc.Me(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "ada", u.Username)
	assert.Empty(t, u.HashedPassword)

	_, err = svc.Me(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
