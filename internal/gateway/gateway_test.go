package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nguyentantai21042004/meeting-summary/internal/job"
	"github.com/nguyentantai21042004/meeting-summary/internal/logger"
	"github.com/nguyentantai21042004/meeting-summary/internal/stage"
)

// fakeStages writes the transcript to dir so downloads can be served
type fakeStages struct {
	dir            string
	failTranscribe bool
	failSummarize  bool
	gate           chan struct{}
}

func (f *fakeStages) ExtractAudio(ctx context.Context, video, outputDir string) (string, error) {
	if f.gate != nil {
		<-f.gate
	}
	return filepath.Join(f.dir, "meeting.wav"), nil
}

func (f *fakeStages) Transcribe(ctx context.Context, audio string, opts stage.TranscribeOptions) (stage.Transcript, error) {
	if f.failTranscribe {
		return stage.Transcript{}, errors.New("whisper crashed")
	}
	path := filepath.Join(f.dir, "meeting.txt")
	if err := os.WriteFile(path, []byte("hello team"), 0644); err != nil {
		return stage.Transcript{}, err
	}
	return stage.Transcript{Text: "hello team", TextPath: path}, nil
}

func (f *fakeStages) Summarize(ctx context.Context, text string, opts stage.SummarizeOptions) (string, error) {
	if f.failSummarize {
		return "", errors.New("model not loaded")
	}
	return "# Summary", nil
}

type testEnv struct {
	registry *job.Registry
	server   *httptest.Server
	uploads  string
}

func newTestEnv(t *testing.T, f *fakeStages) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if f.dir == "" {
		f.dir = t.TempDir()
	}

	log := logger.NewWithFormat("error", "text", io.Discard)
	reg := job.NewRegistry(job.Stages{Extractor: f, Transcriber: f, Summarizer: f}, job.Options{WorkDir: t.TempDir()}, log)
	uploads := filepath.Join(t.TempDir(), "uploads")
	srv := httptest.NewServer(New(reg, Options{UploadDir: uploads, Mode: gin.TestMode}, log).Handler())

	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = reg.Shutdown(ctx)
	})
	return &testEnv{registry: reg, server: srv, uploads: uploads}
}

func (e *testEnv) startJSON(t *testing.T, body string) (*http.Response, startResponse) {
	t.Helper()
	resp, err := http.Post(e.server.URL+"/api/pipeline/start", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out startResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (e *testEnv) wait(t *testing.T, id string) job.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := e.registry.Wait(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func TestStartAndPoll(t *testing.T) {
	env := newTestEnv(t, &fakeStages{})

	resp, started := env.startJSON(t, `{"video":"/videos/a.mp4","context_length":0}`)
	if resp.StatusCode != http.StatusAccepted || started.JobID == "" {
		t.Fatalf("start = %d %+v", resp.StatusCode, started)
	}
	env.wait(t, started.JobID)

	res, err := http.Get(env.server.URL + "/api/pipeline/result/" + started.JobID)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("result status = %d", res.StatusCode)
	}

	var snap job.Snapshot
	if err := json.NewDecoder(res.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.Status != job.StatusDone || snap.Result.Summary != "# Summary" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestStartRejectsInvalidRequests(t *testing.T) {
	env := newTestEnv(t, &fakeStages{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"video":`},
		{"missing video", `{"context_length":10}`},
		{"negative context length", `{"video":"a.mp4","context_length":-5}`},
		{"unsupported extension", `{"video":"/videos/notes.txt"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := env.startJSON(t, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestFailedJobReturnsBadGateway(t *testing.T) {
	env := newTestEnv(t, &fakeStages{failTranscribe: true})

	_, started := env.startJSON(t, `{"video":"a.mp4"}`)
	env.wait(t, started.JobID)

	res, err := http.Get(env.server.URL + "/api/pipeline/result/" + started.JobID)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", res.StatusCode)
	}

	var snap job.Snapshot
	if err := json.NewDecoder(res.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.Error == nil || snap.Error.Stage != job.ReasonTranscriptionFailed {
		t.Errorf("error = %+v", snap.Error)
	}
}

func TestEventStream(t *testing.T) {
	f := &fakeStages{gate: make(chan struct{})}
	env := newTestEnv(t, f)

	_, started := env.startJSON(t, `{"video":"a.mp4"}`)

	resp, err := http.Get(env.server.URL + "/api/pipeline/events/" + started.JobID)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}
	close(f.gate)

	var types []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame struct {
			Type   string          `json:"type"`
			Result json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err != nil {
			t.Fatalf("bad frame %q: %v", line, err)
		}
		types = append(types, frame.Type)
		if frame.Type == "done" && len(frame.Result) == 0 {
			t.Error("done frame without result")
		}
	}

	want := "step,ok,step,ok,step,ok,done"
	if got := strings.Join(types, ","); got != want {
		t.Errorf("frames = %s, want %s", got, want)
	}
}

func TestEventStreamResumesAfterLastEventID(t *testing.T) {
	env := newTestEnv(t, &fakeStages{})
	_, started := env.startJSON(t, `{"video":"a.mp4"}`)
	env.wait(t, started.JobID)

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/pipeline/events/"+started.JobID, nil)
	req.Header.Set("Last-Event-ID", "5")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	ids := 0
	for _, line := range strings.Split(string(body), "\n") {
		if strings.HasPrefix(line, "id: ") {
			ids++
			if line != "id: 6" && line != "id: 7" {
				t.Errorf("unexpected frame %q", line)
			}
		}
	}
	if ids != 2 {
		t.Errorf("received %d frames, want 2", ids)
	}
}

func TestUnknownJob(t *testing.T) {
	env := newTestEnv(t, &fakeStages{})

	for _, path := range []string{
		"/api/pipeline/result/nope",
		"/api/pipeline/events/nope",
		"/api/download/nope/audio",
	} {
		resp, err := http.Get(env.server.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestCancelFinishedJob(t *testing.T) {
	env := newTestEnv(t, &fakeStages{})
	_, started := env.startJSON(t, `{"video":"a.mp4"}`)
	env.wait(t, started.JobID)

	resp, err := http.Post(env.server.URL+"/api/pipeline/cancel/"+started.JobID, "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestDownload(t *testing.T) {
	env := newTestEnv(t, &fakeStages{})
	_, started := env.startJSON(t, `{"video":"a.mp4"}`)
	env.wait(t, started.JobID)

	resp, err := http.Get(env.server.URL + "/api/download/" + started.JobID + "/transcript")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "hello team" {
		t.Errorf("download = %d %q", resp.StatusCode, body)
	}

	// audio path is reported but the fake never writes it
	resp, err = http.Get(env.server.URL + "/api/download/" + started.JobID + "/audio")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing file status = %d, want 404", resp.StatusCode)
	}
}

func multipartBody(t *testing.T, filename string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("video", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("fake video"))
	for k, v := range fields {
		w.WriteField(k, v)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t, &fakeStages{})

	body, contentType := multipartBody(t, "standup.MP4", map[string]string{"context_length": "0", "whisper_model": "small"})
	resp, err := http.Post(env.server.URL+"/api/pipeline/start", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	var started startResponse
	json.NewDecoder(resp.Body).Decode(&started)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	snap := env.wait(t, started.JobID)
	if !strings.HasPrefix(snap.Request.VideoPath, env.uploads) || filepath.Ext(snap.Request.VideoPath) != ".mp4" {
		t.Errorf("VideoPath = %q", snap.Request.VideoPath)
	}
	if snap.Request.WhisperModel != "small" {
		t.Errorf("WhisperModel = %q", snap.Request.WhisperModel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.registry.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(snap.Request.VideoPath); !os.IsNotExist(err) {
		t.Errorf("uploaded file not removed: %v", err)
	}
}

func TestUploadRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, &fakeStages{})

	tests := []struct {
		name     string
		filename string
		fields   map[string]string
	}{
		{"not a video", "notes.txt", nil},
		{"bad context length", "a.mp4", map[string]string{"context_length": "lots"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.filename, tt.fields)
			resp, err := http.Post(env.server.URL+"/api/pipeline/start", contentType, body)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestListAndHealth(t *testing.T) {
	env := newTestEnv(t, &fakeStages{})
	_, started := env.startJSON(t, `{"video":"a.mp4"}`)
	env.wait(t, started.JobID)

	resp, err := http.Get(env.server.URL + "/api/pipeline/jobs")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out struct {
		Jobs []job.Snapshot `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Jobs) != 1 || out.Jobs[0].ID != started.JobID {
		t.Errorf("jobs = %+v", out.Jobs)
	}

	health, err := http.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("healthz = %d", health.StatusCode)
	}
}

func postJSON(t *testing.T, url, body string) (int, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func TestSummarizeTranscript(t *testing.T) {
	tests := []struct {
		name       string
		stages     *fakeStages
		body       string
		wantStatus int
		wantBody   string
	}{
		{"single call", &fakeStages{}, `{"transcript":"we met and agreed"}`, http.StatusOK, `"summary":"# Summary"`},
		{"chunked", &fakeStages{}, `{"transcript":"first part.\n\nsecond part","context_length":12}`, http.StatusOK, `## Part 2`},
		{"empty transcript", &fakeStages{}, `{"transcript":"   "}`, http.StatusBadRequest, `transcript is required`},
		{"malformed", &fakeStages{}, `{"transcript":`, http.StatusBadRequest, `invalid request`},
		{"model failure", &fakeStages{failSummarize: true}, `{"transcript":"hello"}`, http.StatusBadGateway, `model not loaded`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.stages)
			status, body := postJSON(t, env.server.URL+"/api/summarize", tt.body)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", status, tt.wantStatus, body)
			}
			if !strings.Contains(string(body), tt.wantBody) {
				t.Errorf("body = %s, want it to contain %s", body, tt.wantBody)
			}
		})
	}

	env := newTestEnv(t, &fakeStages{})
	postJSON(t, env.server.URL+"/api/summarize", `{"transcript":"hello"}`)
	if jobs := env.registry.List(); len(jobs) != 0 {
		t.Errorf("summarize registered %d jobs, want none", len(jobs))
	}
}

func TestPipelineWaitsForResult(t *testing.T) {
	env := newTestEnv(t, &fakeStages{})

	status, body := postJSON(t, env.server.URL+"/api/pipeline", `{"video":"/videos/a.mp4"}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d (%s)", status, body)
	}
	var snap job.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Status != job.StatusDone || snap.Result == nil || snap.Result.Transcript != "hello team" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestPipelineReportsFailure(t *testing.T) {
	env := newTestEnv(t, &fakeStages{failTranscribe: true})

	status, body := postJSON(t, env.server.URL+"/api/pipeline", `{"video":"/videos/a.mp4"}`)
	if status != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 (%s)", status, body)
	}

	status, _ = postJSON(t, env.server.URL+"/api/pipeline", `{"video":"/videos/a.txt"}`)
	if status != http.StatusBadRequest {
		t.Errorf("unsupported video status = %d, want 400", status)
	}
}
