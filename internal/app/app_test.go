package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chatflow-backend/internal/data/repos/testutil"
	"github.com/yungbote/chatflow-backend/internal/jobs/worker"
	"github.com/yungbote/chatflow-backend/internal/observability"
	"github.com/yungbote/chatflow-backend/internal/platform/objstore"
	"github.com/yungbote/chatflow-backend/internal/services"
)

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, splitList(" https://a.example, ,https://b.example "))
}

func TestWireWithoutOptionalClients(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)
	store, err := objstore.NewLocalStore(log, t.TempDir())
	require.NoError(t, err)

	cfg := Config{RunServer: true, RunWorker: true, Worker: worker.Config{MaxAttempts: 2}}
	clients := Clients{Objects: store}
	metrics := observability.NewMetrics()

	svc, err := wireServices(db, log, cfg, wireRepos(db, log), clients, metrics)
	require.NoError(t, err)
	assert.NotNil(t, svc.JobWorker)
	assert.Nil(t, svc.TemporalWorker)
	assert.Nil(t, svc.JobEvents)
	assert.Equal(t, []string{services.JobTypeChatflowGenerate}, svc.JobRegistry.Types())

	router := wireRouter(log, cfg, wireHandlers(log, db, svc, clients), metrics)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWireWithRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db := testutil.DB(t)
	log := testutil.Logger(t)
	store, err := objstore.NewLocalStore(log, t.TempDir())
	require.NoError(t, err)

	cfg := Config{RunServer: true}
	clients := Clients{Redis: rdb, Objects: store}
	svc, err := wireServices(db, log, cfg, wireRepos(db, log), clients, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc.JobEvents)
	assert.Nil(t, svc.JobWorker, "RUN_WORKER=false must not start a pool")

	router := wireRouter(log, cfg, wireHandlers(log, db, svc, clients), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
