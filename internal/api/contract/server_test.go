package contract

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// recordingServer запоминает вызванную операцию и её параметры.
type recordingServer struct {
	op     string
	table  string
	id     uuid.UUID
	name   string
	params PaginationParams
}

func (s *recordingServer) HealthLive(http.ResponseWriter, *http.Request)  { s.op = "HealthLive" }
func (s *recordingServer) HealthReady(http.ResponseWriter, *http.Request) { s.op = "HealthReady" }
func (s *recordingServer) GetMetrics(http.ResponseWriter, *http.Request)  { s.op = "GetMetrics" }
func (s *recordingServer) Heartbeat(http.ResponseWriter, *http.Request)   { s.op = "Heartbeat" }
func (s *recordingServer) GetOpenAPI(http.ResponseWriter, *http.Request)  { s.op = "GetOpenAPI" }

func (s *recordingServer) ListTables(_ http.ResponseWriter, _ *http.Request, params ListTablesParams) {
	s.op, s.params = "ListTables", params
}

func (s *recordingServer) GetTable(_ http.ResponseWriter, _ *http.Request, table TableName, params GetTableParams) {
	s.op, s.table, s.params = "GetTable", table, params
}

func (s *recordingServer) GetTableRow(_ http.ResponseWriter, _ *http.Request, table TableName, id RowId) {
	s.op, s.table, s.id = "GetTableRow", table, id
}

func (s *recordingServer) GetProject(_ http.ResponseWriter, _ *http.Request, id ProjectId) {
	s.op, s.id = "GetProject", id
}

func (s *recordingServer) GetProjectsBatch(http.ResponseWriter, *http.Request) { s.op = "GetProjectsBatch" }

func (s *recordingServer) SearchProjects(_ http.ResponseWriter, _ *http.Request, name ProjectName) {
	s.op, s.name = "SearchProjects", name
}

func (s *recordingServer) GetLeaderboard(http.ResponseWriter, *http.Request) { s.op = "GetLeaderboard" }

func TestHandler_Routes(t *testing.T) {
	id := uuid.MustParse("2f1b7a4e-9a55-4c51-8a0e-0d3f5c8e7b21")

	tests := []struct {
		method string
		target string
		wantOp string
	}{
		{http.MethodGet, "/health/live", "HealthLive"},
		{http.MethodGet, "/health/ready", "HealthReady"},
		{http.MethodGet, "/metrics", "GetMetrics"},
		{http.MethodGet, "/heartbeat", "Heartbeat"},
		{http.MethodGet, "/openapi.yaml", "GetOpenAPI"},
		{http.MethodGet, "/tables", "ListTables"},
		{http.MethodGet, "/tables/canons", "GetTable"},
		{http.MethodGet, "/tables/canons/" + id.String(), "GetTableRow"},
		{http.MethodGet, "/project/" + id.String(), "GetProject"},
		{http.MethodPost, "/project/batch", "GetProjectsBatch"},
		{http.MethodGet, "/project/search/react", "SearchProjects"},
		{http.MethodPost, "/leaderboard", "GetLeaderboard"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			srv := &recordingServer{}
			h := Handler(srv)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))

			if srv.op != tt.wantOp {
				t.Errorf("вызвана операция %q, ожидалась %q (status %d)", srv.op, tt.wantOp, rec.Code)
			}
		})
	}
}

func TestHandler_PathParams(t *testing.T) {
	id := uuid.New()
	srv := &recordingServer{}
	h := Handler(srv)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tables/package_urls/"+id.String(), nil))
	if srv.table != "package_urls" || srv.id != id {
		t.Errorf("table/id = %q/%s", srv.table, srv.id)
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/project/search/left%20pad", nil))
	if srv.name != "left pad" {
		t.Errorf("name = %q, ожидалось %q", srv.name, "left pad")
	}
}

func TestHandler_Pagination(t *testing.T) {
	srv := &recordingServer{}
	h := Handler(srv)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tables/canons?page=3&limit=50", nil))
	if srv.params.Page == nil || *srv.params.Page != 3 {
		t.Errorf("page = %v, ожидалось 3", srv.params.Page)
	}
	if srv.params.Limit == nil || *srv.params.Limit != 50 {
		t.Errorf("limit = %v, ожидалось 50", srv.params.Limit)
	}

	srv = &recordingServer{}
	Handler(srv).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tables", nil))
	if srv.params.Page != nil || srv.params.Limit != nil {
		t.Errorf("без параметров ожидались nil, получено %+v", srv.params)
	}
}

func TestHandler_InvalidParams(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		wantParam string
	}{
		{"page не число", "/tables?page=invalid", "page"},
		{"limit не число", "/tables/canons?limit=ten", "limit"},
		{"id не uuid", "/project/not-a-uuid", "id"},
		{"id строки не uuid", "/tables/canons/42", "id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := &recordingServer{}
			rec := httptest.NewRecorder()
			Handler(srv).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, ожидался 400", rec.Code)
			}
			if srv.op != "" {
				t.Errorf("обработчик %q не должен вызываться", srv.op)
			}
			if !strings.Contains(rec.Body.String(), "VALIDATION_ERROR") ||
				!strings.Contains(rec.Body.String(), tt.wantParam) {
				t.Errorf("тело = %s", rec.Body.String())
			}
		})
	}
}

func TestHandlerWithOptions_Middlewares(t *testing.T) {
	calls := 0
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			next.ServeHTTP(w, r)
		})
	}
	srv := &recordingServer{}
	h := HandlerWithOptions(srv, ChiServerOptions{Middlewares: []MiddlewareFunc{mw}})

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/heartbeat", nil))
	if calls != 1 || srv.op != "Heartbeat" {
		t.Errorf("middleware вызван %d раз, операция %q", calls, srv.op)
	}
}
