package api

import (
	"bytes"
	"encoding/json"
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
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"invhistory/internal/parser"
	"invhistory/internal/runner"
	"invhistory/internal/store"
	"invhistory/internal/testutil"
)

type testEnv struct {
	router  *gin.Engine
	store   *store.Store
	handler *Handler
	fixture string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dataDir := t.TempDir()
	st, err := store.New(filepath.Join(dataDir, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	r := runner.New(parser.NewXLSXReader(""), st, zerolog.Nop())
	h := NewHandler(r, st, Options{
		UploadDir:   filepath.Join(dataDir, "uploads"),
		ExportDir:   filepath.Join(dataDir, "exports"),
		DownloadTTL: time.Minute,
	}, zerolog.Nop())

	router := gin.New()
	h.RegisterRoutes(router.Group("/api"))
	return &testEnv{router: router, store: st, handler: h, fixture: t.TempDir()}
}

type upload struct {
	name string
	path string
}

func (e *testEnv) postRun(t *testing.T, files []upload, fields map[string][]string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("file", f.name)
		require.NoError(t, err)
		data, err := os.ReadFile(f.path)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, values := range fields {
		for _, v := range values {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/runs", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) scenario(t *testing.T) []upload {
	t.Helper()

	jan := testutil.WriteSnapshot(t, e.fixture, "2024-01-01_Raw_Data.xlsx", [][]any{
		testutil.Row("A1", "B1", "SN1", "D1", "E1", "F1", "G1"),
		testutil.Row("A2", "B2", "SN2", "D2", "E2", "F2", "G2"),
	})
	feb := testutil.WriteSnapshot(t, e.fixture, "2024-02-01_Raw_Data.xlsx", [][]any{
		testutil.Row("A1-NEW", "B1", "SN1", "D1", "E1", "F1", "G1"),
		testutil.Row("A3", "B3", "SN3", "D3", "E3", "F3", "G3"),
	})
	// 上传顺序与时间顺序相反
	return []upload{
		{name: "2024-02-01_Raw_Data.xlsx", path: feb},
		{name: "2024-01-01_Raw_Data.xlsx", path: jan},
	}
}

func decodeRunResponse(t *testing.T, w *httptest.ResponseRecorder) CreateRunResponse {
	t.Helper()

	var resp CreateRunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Report)
	return resp
}

func TestCreateRun_AggregatesUploadsAndServesDownload(t *testing.T) {
	e := newTestEnv(t)

	w := e.postRun(t, e.scenario(t), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeRunResponse(t, w)
	require.Equal(t, 3, resp.Report.Stats.Serials)
	require.Equal(t, 2, resp.Report.Stats.Sources)
	require.Len(t, resp.Report.Sources, 2)
	require.True(t, strings.HasSuffix(resp.Report.Sources[0].Location, "2024-01-01_Raw_Data.xlsx"))
	require.True(t, strings.HasPrefix(resp.DownloadURL, "/api/download/"))

	dl := e.get(resp.DownloadURL)
	require.Equal(t, http.StatusOK, dl.Code)
	require.Contains(t, dl.Header().Get("Content-Disposition"), resp.Report.RunID)

	f, err := excelize.OpenReader(bytes.NewReader(dl.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Serial History")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, "SN1", rows[1][0])
	require.Equal(t, "A1", rows[1][3])
	require.Equal(t, "A1-NEW", rows[1][10])
	require.Contains(t, f.GetSheetList(), "Run Log")

	// 令牌一次性
	again := e.get(resp.DownloadURL)
	require.Equal(t, http.StatusNotFound, again.Code)

	run, err := e.store.GetRun(resp.Report.RunID)
	require.NoError(t, err)
	require.Equal(t, store.StatusDone, run.Status)
	require.Equal(t, 3, run.SerialCount)
}

func TestCreateRun_ExplicitDatesOverrideFilenames(t *testing.T) {
	e := newTestEnv(t)

	uploads := e.scenario(t)
	uploads[0].name = "feb.xlsx"
	uploads[1].name = "jan.xlsx"

	w := e.postRun(t, uploads, map[string][]string{
		"date":          {"2024-02-01", "2024-01-01"},
		"includeRunLog": {"false"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeRunResponse(t, w)
	require.Equal(t, 3, resp.Report.Stats.Serials)
	require.True(t, strings.HasSuffix(resp.Report.Sources[0].Location, "jan.xlsx"))

	dl := e.get(resp.DownloadURL)
	require.Equal(t, http.StatusOK, dl.Code)
	f, err := excelize.OpenReader(bytes.NewReader(dl.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, []string{"Serial History"}, f.GetSheetList())
}

func TestCreateRun_MissingDate(t *testing.T) {
	e := newTestEnv(t)

	uploads := e.scenario(t)
	uploads[0].name = "undated.xlsx"

	w := e.postRun(t, uploads, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "undated.xlsx")
}

func TestCreateRun_SchemaErrorIsUnprocessable(t *testing.T) {
	e := newTestEnv(t)

	bad := filepath.Join(e.fixture, "2024-03-01_Raw_Data.xlsx")
	testutil.WriteWorkbook(t, bad, []string{"A", "B", "Serial", "D"}, [][]any{
		{"a", "b", "SN9", "d"},
	})

	uploads := append(e.scenario(t), upload{name: "2024-03-01_Raw_Data.xlsx", path: bad})
	w := e.postRun(t, uploads, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Contains(t, w.Body.String(), "Column C header must be 'SN'")

	list := e.get("/api/runs")
	require.Equal(t, http.StatusOK, list.Code)
	var body struct {
		Runs []store.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	require.Equal(t, store.StatusFailed, body.Runs[0].Status)
}

func TestCreateRun_Parquet(t *testing.T) {
	e := newTestEnv(t)

	w := e.postRun(t, e.scenario(t), map[string][]string{"format": {"parquet"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeRunResponse(t, w)
	require.Equal(t, ".parquet", filepath.Ext(resp.Report.OutputPath))

	dl := e.get(resp.DownloadURL)
	require.Equal(t, http.StatusOK, dl.Code)
	require.Equal(t, contentTypeParquet, dl.Header().Get("Content-Type"))
	data, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("PAR1")))
}

func TestCreateRun_RejectsUnknownFormatAndEmptyForm(t *testing.T) {
	e := newTestEnv(t)

	w := e.postRun(t, e.scenario(t), map[string][]string{"format": {"csv"}})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.postRun(t, nil, map[string][]string{"format": {"xlsx"}})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRun_WithSources(t *testing.T) {
	e := newTestEnv(t)

	w := e.postRun(t, e.scenario(t), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeRunResponse(t, w)

	detail := e.get("/api/runs/" + resp.Report.RunID)
	require.Equal(t, http.StatusOK, detail.Code)

	var got struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		Sources []struct {
			Position int    `json:"position"`
			Source   string `json:"source"`
		} `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(detail.Body.Bytes(), &got))
	require.Equal(t, resp.Report.RunID, got.ID)
	require.Equal(t, store.StatusDone, got.Status)
	require.Len(t, got.Sources, 2)
	require.Equal(t, 1, got.Sources[0].Position)

	missing := e.get("/api/runs/does-not-exist")
	require.Equal(t, http.StatusNotFound, missing.Code)
}

func TestGetStatus(t *testing.T) {
	e := newTestEnv(t)

	w := e.get("/api/status")
	require.Equal(t, http.StatusOK, w.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Ready)
	require.Nil(t, resp.LastRun)
}

func TestDownload_UnknownToken(t *testing.T) {
	e := newTestEnv(t)

	w := e.get("/api/download/nope")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateRun_IncludeRunLogParsing(t *testing.T) {
	e := newTestEnv(t)

	for _, v := range []string{"1", "TRUE", "t"} {
		w := e.postRun(t, e.scenario(t), map[string][]string{"includeRunLog": {v}})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		dl := e.get(decodeRunResponse(t, w).DownloadURL)
		require.Equal(t, http.StatusOK, dl.Code)
		f, err := excelize.OpenReader(bytes.NewReader(dl.Body.Bytes()))
		require.NoError(t, err)
		require.Contains(t, f.GetSheetList(), "Run Log", v)
		require.NoError(t, f.Close())
	}

	w := e.postRun(t, e.scenario(t), map[string][]string{"includeRunLog": {"maybe"}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "includeRunLog")
}

func TestDownload_RemovesArtifacts(t *testing.T) {
	e := newTestEnv(t)

	w := e.postRun(t, e.scenario(t), map[string][]string{"format": {"parquet"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeRunResponse(t, w)

	runLogPath := strings.TrimSuffix(resp.Report.OutputPath, ".parquet") + "_runlog.parquet"
	_, err := os.Stat(runLogPath)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, e.get(resp.DownloadURL).Code)

	_, err = os.Stat(resp.Report.OutputPath)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(runLogPath)
	require.True(t, os.IsNotExist(err))
}

func TestArtifactTokens_ExpiryRemovesFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	expired := filepath.Join(dir, "old.xlsx")
	fresh := filepath.Join(dir, "new.xlsx")
	require.NoError(t, os.WriteFile(expired, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newArtifactTokens(time.Minute)
	s.now = func() time.Time { return now }

	oldToken := s.issue("run-1", expired)
	now = now.Add(2 * time.Minute)
	newToken := s.issue("run-2", fresh)

	_, ok := s.lookup(oldToken)
	require.False(t, ok)
	_, err := os.Stat(expired)
	require.True(t, os.IsNotExist(err))

	item, ok := s.lookup(newToken)
	require.True(t, ok)
	require.Equal(t, "run-2", item.runID)
	require.Equal(t, []string{fresh}, item.paths)

	s.consume(newToken)
	_, ok = s.lookup(newToken)
	require.False(t, ok)
	_, err = os.Stat(fresh)
	require.True(t, os.IsNotExist(err))
}
