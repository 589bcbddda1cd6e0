package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chatflow-backend/internal/chatflow/generation"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCreateAndPublish(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/chatflows":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"chatflow":{"id":"cf-1","description":"` + body["description"] + `"},"job":{"id":"job-1"}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/chatflows/cf-1/publish":
			_, _ = w.Write([]byte(`{"share_url":"https://chat.example.com/c/abc","share_token":"abc"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","code":"not_found"}}`))
		}
	}))
	defer srv.Close()

	out, err := run(t, "--server", srv.URL, "create", "collect", "name", "and", "email")
	require.NoError(t, err)
	assert.Contains(t, out, `"description": "collect name and email"`)

	out, err = run(t, "--server", srv.URL, "publish", "cf-1")
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com/c/abc\n", out)

	_, err = run(t, "--server", srv.URL, "publish", "missing")
	var ae *apiError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusNotFound, ae.Status)
	assert.Equal(t, "not_found", ae.Code)
	assert.Equal(t, 1, exitCode(err))
}

func TestWaitOutcomes(t *testing.T) {
	var calls int32
	states := map[string][]string{
		"done":    {`{"state":"running"}`, `{"state":"completed","result":{"name":"Contact","fields":[]}}`},
		"failed":  {`{"state":"failed","error":"validate: bad"}`},
		"running": {`{"state":"running"}`},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/chatflows/"), "/generation")
		seq := states[id]
		n := int(atomic.AddInt32(&calls, 1)) - 1
		if n >= len(seq) {
			n = len(seq) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(seq[n]))
	}))
	defer srv.Close()

	atomic.StoreInt32(&calls, 0)
	out, err := run(t, "--server", srv.URL, "wait", "done", "--attempts", "5", "--interval", "1ms")
	require.NoError(t, err)
	assert.Contains(t, out, `"state": "completed"`)

	atomic.StoreInt32(&calls, 0)
	_, err = run(t, "--server", srv.URL, "wait", "failed", "--attempts", "5", "--interval", "1ms")
	require.True(t, errors.Is(err, generation.ErrGenerationFailed))
	assert.Equal(t, 1, exitCode(err))

	atomic.StoreInt32(&calls, 0)
	_, err = run(t, "--server", srv.URL, "wait", "running", "--attempts", "3", "--interval", "1ms")
	require.True(t, errors.Is(err, generation.ErrPollTimeout))
	assert.Equal(t, 2, exitCode(err))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestServerFromEnv(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"submissions":[{"id":"s1","status":"COMPLETED"}]}`))
	}))
	defer srv.Close()
	t.Setenv("CHATFLOWCTL_SERVER", srv.URL)

	out, err := run(t, "submissions", "cf-1")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "COMPLETED"`)
}
