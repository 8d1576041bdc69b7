package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/identity_service/internal/config"
	"github.com/Skotchmaster/identity_service/internal/models"
	"github.com/Skotchmaster/identity_service/internal/repo"
	"github.com/Skotchmaster/identity_service/internal/service"
	"github.com/Skotchmaster/identity_service/internal/tokens"
)

type authEnv struct {
	mw   *Auth
	repo *repo.GormRepo
	svc  *service.TokenService
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Token{}, &models.Role{}, &models.Permission{}))

	r := &repo.GormRepo{DB: db}
	cfg := &config.Config{
		JWTSecret:          []byte("test-jwt-secret"),
		AccessTokenMinutes: 15,
		RefreshTokenDays:   7,
	}
	tokenSvc := &service.TokenService{Repo: r, Secret: cfg.JWTSecret, Cfg: cfg}
	roleSvc := &service.RoleService{Repo: r}

	return &authEnv{
		mw:   &Auth{Tokens: tokenSvc, Roles: roleSvc, Repo: r},
		repo: r,
		svc:  tokenSvc,
	}
}

func (env *authEnv) createUserWithRights(t *testing.T, rights ...string) *models.User {
	t.Helper()

	role := &models.Role{Name: "role-" + strconv.Itoa(len(rights)), IsActive: true}
	require.NoError(t, env.repo.DB.Create(role).Error)
	for _, name := range rights {
		p := &models.Permission{Name: name, IsActive: true}
		require.NoError(t, env.repo.DB.Create(p).Error)
		require.NoError(t, env.repo.AttachPermissions(context.Background(), role.ID, []uint{p.ID}))
	}

	user := &models.User{Email: "u@example.com", PasswordHash: "x", RoleID: &role.ID}
	require.NoError(t, env.repo.DB.Create(user).Error)
	return user
}

func (env *authEnv) bearerFor(t *testing.T, userID uint) string {
	t.Helper()

	token, err := env.svc.Issue(userID, tokens.TypeAccess, time.Now().UTC().Add(15*time.Minute))
	require.NoError(t, err)
	return "Bearer " + token
}

func newRequestContext(authorization, paramUserID string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+paramUserID, nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if paramUserID != "" {
		c.SetParamNames("userId")
		c.SetParamValues(paramUserID)
	}
	return c, rec
}

func okHandler(c echo.Context) error { return c.NoContent(http.StatusOK) }

func TestAuthenticate_MissingHeader(t *testing.T) {
	env := newAuthEnv(t)
	c, _ := newRequestContext("", "")

	err := env.mw.Authenticate(okHandler)(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestAuthenticate_GarbageToken(t *testing.T) {
	env := newAuthEnv(t)
	c, _ := newRequestContext("Bearer not-a-jwt", "")

	err := env.mw.Authenticate(okHandler)(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestAuthenticate_ValidToken_LoadsUser(t *testing.T) {
	env := newAuthEnv(t)
	user := env.createUserWithRights(t)
	c, rec := newRequestContext(env.bearerFor(t, user.ID), "")

	var seen *models.User
	err := env.mw.Authenticate(func(c echo.Context) error {
		seen = UserFromContext(c)
		return c.NoContent(http.StatusOK)
	})(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, user.ID, seen.ID)
}

func TestRequireRights_GrantedByPermission(t *testing.T) {
	env := newAuthEnv(t)
	user := env.createUserWithRights(t, "user-get")
	c, rec := newRequestContext(env.bearerFor(t, user.ID), "999")

	h := env.mw.Authenticate(env.mw.RequireRights("user-get")(okHandler))
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRights_DeniedWithoutPermission(t *testing.T) {
	env := newAuthEnv(t)
	user := env.createUserWithRights(t)
	c, _ := newRequestContext(env.bearerFor(t, user.ID), "999")

	h := env.mw.Authenticate(env.mw.RequireRights("user-get")(okHandler))
	err := h(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, he.Code)
}

func TestRequireRights_SelfAccessOverride(t *testing.T) {
	env := newAuthEnv(t)
	user := env.createUserWithRights(t) // no permissions at all
	own := strconv.FormatUint(uint64(user.ID), 10)
	c, rec := newRequestContext(env.bearerFor(t, user.ID), own)

	h := env.mw.Authenticate(env.mw.RequireRights("user-get")(okHandler))
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
