package router

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"phishsim/pkg/errutil"
	"phishsim/pkg/httputil"
	"reflect"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"github.com/rs/zerolog/log"
)

const (
	appBasePath   = "/api/v1"
	adminBasePath = "/api/admin/v1"
)

// to decode url params and form bodies
var decoder = newDecoder()

func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

var (
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrCannotDecodeUrlParams  = errors.New("cannot decode url params")
	ErrCannotDecodeForm       = errors.New("cannot decode form")
)

type Middleware interface {
	Handle(http.Handler) http.Handler
}

type MiddlewareFunc func(http.Handler) http.Handler

func (f MiddlewareFunc) Handle(next http.Handler) http.Handler {
	return f(next)
}

type Handler struct {
	Req        interface{}
	Res        interface{}
	HandleFunc func(ctx context.Context, req interface{}, res interface{}) error

	// Lenient handlers never answer with an error envelope for malformed input,
	// the HandleFunc sees whatever could be decoded.
	Lenient bool

	reqT  reflect.Type
	respT reflect.Type
}

type HttpRoute struct {
	Method      string
	Path        string
	Handler     Handler
	Middlewares []Middleware
	IsAdmin     bool
	// IsPublic mounts the route at Path without the API prefix.
	IsPublic bool
}

type HttpRouter struct {
	*mux.Router
}

func (r *HttpRouter) RegisterHttpRoute(hr *HttpRoute) {
	// save req and res type
	hr.Handler.reqT = reflect.TypeOf(hr.Handler.Req).Elem()
	hr.Handler.respT = reflect.TypeOf(hr.Handler.Res).Elem()

	chain := http.Handler(hr.Handler)

	if hr.Middlewares != nil {
		// wrap middlewares from right to left
		for i := len(hr.Middlewares) - 1; i >= 0; i-- {
			chain = hr.Middlewares[i].Handle(chain)
		}
	}

	path := hr.Path
	switch {
	case hr.IsPublic:
	case hr.IsAdmin:
		path = fmt.Sprintf("%s%s", adminBasePath, hr.Path)
	default:
		path = fmt.Sprintf("%s%s", appBasePath, hr.Path)
	}

	r.Methods(hr.Method).Path(path).Handler(chain)
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := httputil.WithRequestMeta(r.Context(), r)
	req := reflect.New(h.reqT).Interface()
	res := reflect.New(h.respT).Interface()

	if err := decoder.Decode(req, r.URL.Query()); err != nil {
		log.Ctx(ctx).Warn().Msgf("decode url query params error: %v", err)
		if !h.Lenient {
			httputil.ReturnServerResponse(w, nil, errutil.BadRequestError(ErrCannotDecodeUrlParams))
			return
		}
	}

	if r.Body != nil && r.Body != http.NoBody {
		switch {
		case hasContentType(r, "application/json"):
			if err := httputil.ReadJsonBody(r, req); err != nil {
				log.Ctx(ctx).Error().Msgf("read json body error: %v", err)
				httputil.ReturnServerResponse(w, nil, errutil.BadRequestError(err))
				return
			}
		case hasContentType(r, "application/x-www-form-urlencoded"), hasContentType(r, "multipart/form-data"):
			form, err := readForm(w, r)
			if err != nil {
				log.Ctx(ctx).Warn().Msgf("read form error: %v", err)
				if !h.Lenient {
					httputil.ReturnServerResponse(w, nil, errutil.BadRequestError(ErrCannotDecodeForm))
					return
				}
			}
			if err := decoder.Decode(req, form); err != nil {
				log.Ctx(ctx).Warn().Msgf("decode form error: %v", err)
				if !h.Lenient {
					httputil.ReturnServerResponse(w, nil, errutil.BadRequestError(ErrCannotDecodeForm))
					return
				}
			}
			setForm(req, form)
		default:
			if !h.Lenient && r.ContentLength > 0 {
				httputil.ReturnServerResponse(w, nil, errutil.BadRequestError(ErrUnsupportedContentType))
				return
			}
		}
	}

	err := h.HandleFunc(ctx, req, res)
	if raw, ok := res.(httputil.RawResponse); ok && err == nil {
		raw.WriteResponse(w, r)
		return
	}

	httputil.ReturnServerResponse(w, res, err)
}

func readForm(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, httputil.MaxFormSize)

	if hasContentType(r, "multipart/form-data") {
		if err := r.ParseMultipartForm(httputil.MaxFormSize); err != nil {
			return url.Values{}, err
		}
		return r.PostForm, nil
	}

	if err := r.ParseForm(); err != nil {
		return url.Values{}, err
	}
	return r.PostForm, nil
}

// setForm hands the raw form to requests that declare a `Form url.Values` field.
func setForm(req interface{}, form url.Values) {
	reqVal := reflect.ValueOf(req).Elem()
	fv := reqVal.FieldByName("Form")
	if fv.IsValid() && fv.CanSet() && fv.Type() == reflect.TypeOf(url.Values{}) {
		fv.Set(reflect.ValueOf(form))
	}
}

func hasContentType(r *http.Request, mimetype string) bool {
	contentType := r.Header.Get("Content-type")
	if contentType == "" {
		return mimetype == "application/octet-stream"
	}

	for _, v := range strings.Split(contentType, ",") {
		t, _, err := mime.ParseMediaType(v)
		if err != nil {
			break
		}
		if t == mimetype {
			return true
		}
	}
	return false
}
