package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chatflow-backend/internal/chatflow/generation"
	"github.com/yungbote/chatflow-backend/internal/chatflow/schema"
	"github.com/yungbote/chatflow-backend/internal/data/repos"
	"github.com/yungbote/chatflow-backend/internal/data/repos/testutil"
	domainchatflow "github.com/yungbote/chatflow-backend/internal/domain/chatflow"
	httpH "github.com/yungbote/chatflow-backend/internal/http/handlers"
	"github.com/yungbote/chatflow-backend/internal/observability"
	"github.com/yungbote/chatflow-backend/internal/platform/objstore"
	"github.com/yungbote/chatflow-backend/internal/services"
)

type apiHarness struct {
	router    *gin.Engine
	chatflows services.ChatflowService
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)
	metrics := observability.NewMetrics()

	jobRepo := repos.NewJobRunRepo(db, log)
	eventRepo := repos.NewJobRunEventRepo(db, log)
	chatflowRepo := repos.NewChatflowRepo(db, log)
	jobs := services.NewJobService(db, log, jobRepo, eventRepo, services.NewJobNotifier(log, eventRepo, nil), nil, "", 3)
	chatflows := services.NewChatflowService(db, log, chatflowRepo, jobs, nil, "https://chat.example.com")
	submissions := services.NewSubmissionService(log, repos.NewSubmissionRepo(db, log), chatflowRepo, metrics)
	store := services.NewMemorySessionStore(0)
	sessions := services.NewSessionService(log, chatflows, submissions, store)
	objects, err := objstore.NewLocalStore(log, t.TempDir())
	require.NoError(t, err)

	r := NewRouter(RouterConfig{
		Log:             log,
		Metrics:         metrics,
		ChatflowHandler: httpH.NewChatflowHandler(chatflows, submissions),
		PublicHandler:   httpH.NewPublicHandler(chatflows, sessions),
		SessionHandler:  httpH.NewSessionHandler(sessions, services.NewUploadService(log, store, objects)),
		JobHandler:      httpH.NewJobHandler(log, jobs, nil),
		HealthHandler:   httpH.NewHealthHandler(nil),
	})
	return &apiHarness{router: r, chatflows: chatflows}
}

func (h *apiHarness) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

// closeNotifyingRecorder satisfies http.CloseNotifier for gin's Stream.
type closeNotifyingRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyingRecorder) CloseNotify() <-chan bool { return r.closed }

func errorCode(out map[string]any) string {
	e, _ := out["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestChatflowLifecycleOverHTTP(t *testing.T) {
	h := newAPIHarness(t)

	rec, out := h.do(t, "POST", "/api/chatflows", gin.H{"description": "collect name and email"})
	require.Equal(t, stdhttp.StatusAccepted, rec.Code, rec.Body.String())
	cf := out["chatflow"].(map[string]any)
	id := cf["id"].(string)
	token := cf["share_token"].(string)
	assert.Equal(t, generation.GeneratingName, cf["name"])
	job := out["job"].(map[string]any)
	assert.Equal(t, "chatflow_generate", job["job_type"])

	rec, out = h.do(t, "GET", "/api/chatflows/"+id+"/generation", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, "running", out["state"])

	rec, out = h.do(t, "POST", "/api/chatflows/"+id+"/publish", nil)
	assert.Equal(t, stdhttp.StatusConflict, rec.Code)
	assert.Equal(t, "not_ready", errorCode(out))

	rec, _ = h.do(t, "GET", "/api/public/chatflows/"+token, nil)
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)

	sc, err := schema.ValidateJSON([]byte(testutil.SampleSchema))
	require.NoError(t, err)
	require.NoError(t, h.chatflows.ApplyGeneration(context.Background(), uuid.MustParse(id), generation.Result{Name: "Contact", Schema: sc}))

	rec, out = h.do(t, "POST", "/api/chatflows/"+id+"/publish", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "https://chat.example.com/c/"+token, out["share_url"])

	rec, out = h.do(t, "GET", "/api/public/chatflows/"+token, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Len(t, out["chatflow"].(map[string]any)["fields"], 2)

	rec, out = h.do(t, "GET", "/api/jobs/"+job["id"].(string), nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, "queued", out["job"].(map[string]any)["status"])

	rec, out = h.do(t, "GET", "/api/chatflows?status=published", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Len(t, out["chatflows"], 1)
}

func TestConversationOverHTTP(t *testing.T) {
	h := newAPIHarness(t)
	ctx := context.Background()

	cf, job, err := h.chatflows.Create(ctx, "collect name and email")
	require.NoError(t, err)
	require.NotNil(t, job)
	sc, err := schema.ValidateJSON([]byte(testutil.SampleSchema))
	require.NoError(t, err)
	require.NoError(t, h.chatflows.ApplyGeneration(ctx, cf.ID, generation.Result{Name: "Contact", Schema: sc}))
	_, err = h.chatflows.Publish(ctx, cf.ID)
	require.NoError(t, err)

	rec, out := h.do(t, "POST", "/api/public/chatflows/"+cf.ShareToken+"/sessions", nil)
	require.Equal(t, stdhttp.StatusCreated, rec.Code, rec.Body.String())
	sess := out["session"].(map[string]any)
	sid := sess["id"].(string)
	assert.Equal(t, "fullName", sess["prompt"].(map[string]any)["name"])
	assert.Len(t, out["utterances"], 2)

	rec, _ = h.do(t, "POST", "/api/public/sessions/"+sid+"/answers", gin.H{"value": "Jane Doe"})
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())

	rec, out = h.do(t, "POST", "/api/public/sessions/"+sid+"/answers", gin.H{"value": "not-an-email"})
	require.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_answer", errorCode(out))
	details := out["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "email", details["turn"].(map[string]any)["prompt"].(map[string]any)["name"])

	rec, out = h.do(t, "POST", "/api/public/sessions/"+sid+"/answers", gin.H{"value": "jane@x.com"})
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "completed", out["turn"].(map[string]any)["state"])

	rec, out = h.do(t, "POST", "/api/public/sessions/"+sid+"/answers", gin.H{"value": "again"})
	assert.Equal(t, stdhttp.StatusConflict, rec.Code)
	assert.Equal(t, "closed", errorCode(out))

	rec, out = h.do(t, "GET", "/api/chatflows/"+cf.ID.String()+"/submissions", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	subs := out["submissions"].([]any)
	require.Len(t, subs, 1)
	assert.Equal(t, string(domainchatflow.SubmissionCompleted), subs[0].(map[string]any)["status"])

	rec, _ = h.do(t, "GET", "/api/public/sessions/"+uuid.NewString(), nil)
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
}

func TestClientDrivenSubmissionOverHTTP(t *testing.T) {
	h := newAPIHarness(t)
	ctx := context.Background()
	cf, err := h.chatflows.CreatePlaceholder(ctx, "collect name and email")
	require.NoError(t, err)
	_, err = h.chatflows.Update(ctx, cf.ID, services.ChatflowPatch{Schema: json.RawMessage(testutil.SampleSchema)})
	require.NoError(t, err)
	_, err = h.chatflows.Publish(ctx, cf.ID)
	require.NoError(t, err)

	base := "/api/public/chatflows/" + cf.ShareToken + "/submissions"
	rec, out := h.do(t, "PUT", base+"/fields", gin.H{"field_name": "fullName", "field_value": "Jane Doe"})
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	subID := out["submission_id"].(string)

	rec, out = h.do(t, "PUT", base+"/fields", gin.H{"submission_id": subID, "field_name": "email", "field_value": "nope"})
	assert.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_answer", errorCode(out))

	rec, _ = h.do(t, "POST", base+"/finalize", gin.H{
		"submission_id": subID,
		"data":          gin.H{"fullName": "Jane Doe", "email": "jane@x.com"},
		"status":        "COMPLETED",
	})
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())

	rec, out = h.do(t, "POST", base+"/finalize", gin.H{"submission_id": subID, "status": "DONE"})
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_status", errorCode(out))
}

func TestFinalizeWithoutAnswersOverHTTP(t *testing.T) {
	h := newAPIHarness(t)
	ctx := context.Background()
	cf, err := h.chatflows.CreatePlaceholder(ctx, "collect name and email")
	require.NoError(t, err)
	_, err = h.chatflows.Update(ctx, cf.ID, services.ChatflowPatch{Schema: json.RawMessage(testutil.SampleSchema)})
	require.NoError(t, err)
	_, err = h.chatflows.Publish(ctx, cf.ID)
	require.NoError(t, err)

	base := "/api/public/chatflows/" + cf.ShareToken + "/submissions"
	for i := 0; i < 2; i++ {
		rec, out := h.do(t, "POST", base+"/finalize", gin.H{"data": gin.H{}, "status": "COMPLETED"})
		assert.Equal(t, stdhttp.StatusNotFound, rec.Code, rec.Body.String())
		assert.Equal(t, "not_found", errorCode(out))
	}

	rec, out := h.do(t, "GET", "/api/chatflows/"+cf.ID.String()+"/submissions", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Empty(t, out["submissions"])
}

func TestValidationErrorsOverHTTP(t *testing.T) {
	h := newAPIHarness(t)
	ctx := context.Background()
	cf, err := h.chatflows.CreatePlaceholder(ctx, "x")
	require.NoError(t, err)

	rec, out := h.do(t, "PATCH", "/api/chatflows/"+cf.ID.String(), gin.H{
		"schema": json.RawMessage(`{"fields":[{"id":"a","name":"bad name","label":"A","type":"text","required":false}]}`),
	})
	require.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_schema", errorCode(out))
	assert.NotEmpty(t, out["error"].(map[string]any)["details"])

	rec, out = h.do(t, "GET", "/api/chatflows/not-a-uuid", nil)
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_chatflow_id", errorCode(out))

	rec, out = h.do(t, "POST", "/api/chatflows", gin.H{"description": "  "})
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_argument", errorCode(out))
}

func TestUploadOverHTTP(t *testing.T) {
	h := newAPIHarness(t)
	ctx := context.Background()
	cf, err := h.chatflows.CreatePlaceholder(ctx, "job application")
	require.NoError(t, err)
	_, err = h.chatflows.Update(ctx, cf.ID, services.ChatflowPatch{Schema: json.RawMessage(
		`{"fields":[{"id":"f1","name":"resume","label":"Upload your resume","type":"file","required":true}]}`,
	)})
	require.NoError(t, err)
	_, err = h.chatflows.Publish(ctx, cf.ID)
	require.NoError(t, err)

	_, out := h.do(t, "POST", "/api/public/chatflows/"+cf.ShareToken+"/sessions", nil)
	sid := out["session"].(map[string]any)["id"].(string)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("field", "resume"))
	fw, err := mw.CreateFormFile("file", "cv.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/public/sessions/"+sid+"/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	require.Equal(t, stdhttp.StatusCreated, rec.Code, rec.Body.String())

	var up map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	assert.True(t, strings.HasSuffix(up["key"], "-cv.pdf"))
}

func TestJobEventsStreamStoredTimeline(t *testing.T) {
	h := newAPIHarness(t)
	_, job, err := h.chatflows.Create(context.Background(), "collect name and email")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/jobs/"+job.ID.String()+"/events", nil)
	rec := &closeNotifyingRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool)}
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "event:created")
}

func TestInfraEndpoints(t *testing.T) {
	h := newAPIHarness(t)

	rec, _ := h.do(t, "GET", "/healthcheck", nil)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	req := httptest.NewRequest("GET", "/metrics", nil)
	mrec := httptest.NewRecorder()
	h.router.ServeHTTP(mrec, req)
	assert.Equal(t, stdhttp.StatusOK, mrec.Code)
	assert.Contains(t, mrec.Body.String(), `http_requests_total{method="GET",path="/healthcheck",status="200"} 1`)
}
