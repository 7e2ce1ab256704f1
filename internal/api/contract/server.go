package contract

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/bigkaa/chai-api/internal/api/errors"
)

// ServerInterface — обработчики всех операций API.
type ServerInterface interface {
	// (GET /health/live)
	HealthLive(w http.ResponseWriter, r *http.Request)
	// (GET /health/ready)
	HealthReady(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	GetMetrics(w http.ResponseWriter, r *http.Request)
	// (GET /heartbeat)
	Heartbeat(w http.ResponseWriter, r *http.Request)
	// (GET /openapi.yaml)
	GetOpenAPI(w http.ResponseWriter, r *http.Request)
	// (GET /tables)
	ListTables(w http.ResponseWriter, r *http.Request, params ListTablesParams)
	// (GET /tables/{table})
	GetTable(w http.ResponseWriter, r *http.Request, table TableName, params GetTableParams)
	// (GET /tables/{table}/{id})
	GetTableRow(w http.ResponseWriter, r *http.Request, table TableName, id RowId)
	// (GET /project/{id})
	GetProject(w http.ResponseWriter, r *http.Request, id ProjectId)
	// (POST /project/batch)
	GetProjectsBatch(w http.ResponseWriter, r *http.Request)
	// (GET /project/search/{name})
	SearchProjects(w http.ResponseWriter, r *http.Request, name ProjectName)
	// (POST /leaderboard)
	GetLeaderboard(w http.ResponseWriter, r *http.Request)
}

// MiddlewareFunc — middleware уровня операции.
type MiddlewareFunc func(http.Handler) http.Handler

// InvalidParamFormatError — параметр не удалось привести к типу из контракта.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// ServerInterfaceWrapper привязывает параметры пути и запроса к типам контракта.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, h http.Handler) {
	for _, middleware := range siw.HandlerMiddlewares {
		h = middleware(h)
	}
	h.ServeHTTP(w, r)
}

func (siw *ServerInterfaceWrapper) HealthLive(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.HealthLive))
}

func (siw *ServerInterfaceWrapper) HealthReady(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.HealthReady))
}

func (siw *ServerInterfaceWrapper) GetMetrics(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.GetMetrics))
}

func (siw *ServerInterfaceWrapper) Heartbeat(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.Heartbeat))
}

func (siw *ServerInterfaceWrapper) GetOpenAPI(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.GetOpenAPI))
}

func (siw *ServerInterfaceWrapper) ListTables(w http.ResponseWriter, r *http.Request) {
	var params ListTablesParams
	if err := bindPagination(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListTables(w, r, params)
	}))
}

func (siw *ServerInterfaceWrapper) GetTable(w http.ResponseWriter, r *http.Request) {
	var table TableName
	if err := bindPathParam(r, "table", &table); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	var params GetTableParams
	if err := bindPagination(r, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetTable(w, r, table, params)
	}))
}

func (siw *ServerInterfaceWrapper) GetTableRow(w http.ResponseWriter, r *http.Request) {
	var table TableName
	if err := bindPathParam(r, "table", &table); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	var id RowId
	if err := bindPathParam(r, "id", &id); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetTableRow(w, r, table, id)
	}))
}

func (siw *ServerInterfaceWrapper) GetProject(w http.ResponseWriter, r *http.Request) {
	var id ProjectId
	if err := bindPathParam(r, "id", &id); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetProject(w, r, id)
	}))
}

func (siw *ServerInterfaceWrapper) GetProjectsBatch(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.GetProjectsBatch))
}

func (siw *ServerInterfaceWrapper) SearchProjects(w http.ResponseWriter, r *http.Request) {
	var name ProjectName
	if err := bindPathParam(r, "name", &name); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.SearchProjects(w, r, name)
	}))
}

func (siw *ServerInterfaceWrapper) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.GetLeaderboard))
}

// bindPathParam разбирает обязательный параметр пути (style=simple).
func bindPathParam(r *http.Request, name string, dest any) error {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{
			ParamLocation: runtime.ParamLocationPath,
			Explode:       false,
			Required:      true,
		})
	if err != nil {
		return &InvalidParamFormatError{ParamName: name, Err: err}
	}
	return nil
}

// bindPagination разбирает необязательные page и limit (style=form).
func bindPagination(r *http.Request, params *PaginationParams) error {
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "page", query, &params.Page); err != nil {
		return &InvalidParamFormatError{ParamName: "page", Err: err}
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &params.Limit); err != nil {
		return &InvalidParamFormatError{ParamName: "limit", Err: err}
	}
	return nil
}

// ChiServerOptions — параметры регистрации маршрутов.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler создаёт http.Handler со всеми маршрутами на новом chi.Router.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerFromMux регистрирует маршруты на переданном роутере.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{BaseRouter: r})
}

// HandlerWithOptions регистрирует маршруты с указанными опциями.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = defaultErrorHandler
	}

	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	base := options.BaseURL
	r.Get(base+"/health/live", wrapper.HealthLive)
	r.Get(base+"/health/ready", wrapper.HealthReady)
	r.Get(base+"/metrics", wrapper.GetMetrics)
	r.Get(base+"/heartbeat", wrapper.Heartbeat)
	r.Get(base+"/openapi.yaml", wrapper.GetOpenAPI)
	r.Get(base+"/tables", wrapper.ListTables)
	r.Get(base+"/tables/{table}", wrapper.GetTable)
	r.Get(base+"/tables/{table}/{id}", wrapper.GetTableRow)
	r.Get(base+"/project/{id}", wrapper.GetProject)
	r.Post(base+"/project/batch", wrapper.GetProjectsBatch)
	r.Get(base+"/project/search/{name}", wrapper.SearchProjects)
	r.Post(base+"/leaderboard", wrapper.GetLeaderboard)

	return r
}

// defaultErrorHandler отвечает 400 VALIDATION_ERROR на ошибки привязки параметров.
func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	apierrors.ValidationError(w, err.Error())
}
