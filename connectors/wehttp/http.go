package wehttp

import (
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/weegigs/wee-ledger-go/we"
)

type HandlerOption[T any] func(service *httpService[T])

func Logger[T any](log *zerolog.Logger) HandlerOption[T] {
	return func(service *httpService[T]) {
		service.log = log
	}
}

// Authenticated resolves callers with authenticator before commands run.
func Authenticated[T any](authenticator Authenticator) HandlerOption[T] {
	return func(service *httpService[T]) {
		service.authenticator = authenticator
	}
}

// DefaultState serves entities without history in their zero state instead of
// answering 404.
func DefaultState[T any]() HandlerOption[T] {
	return func(service *httpService[T]) {
		service.defaults = true
	}
}

func Encoder[T any](encoder we.EntityEncoder[T]) HandlerOption[T] {
	return func(service *httpService[T]) {
		service.encoder = encoder
	}
}

func NewHandler[T any](entityService we.EntityService[T], options ...HandlerOption[T]) http.Handler {
	service := &httpService[T]{controller: entityService, encoder: we.NewResourceEncoder[T]()}
	for _, option := range options {
		option(service)
	}
	if service.log == nil {
		service.log = &log.Logger
	}

	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))
	if service.authenticator != nil {
		r.Use(Authenticate(service.authenticator, service.log))
	}

	r.Method("GET", "/{type}/{key}", service.getResource())
	r.Method("POST", "/{type}/{key}", service.executeCommand())

	return r
}

type httpService[T any] struct {
	log           *zerolog.Logger
	controller    we.EntityService[T]
	encoder       we.EntityEncoder[T]
	authenticator Authenticator
	defaults      bool
}

// commandRequest is the wire form of a remote command. The payload is any
// json value and is handed to the command handler still encoded.
type commandRequest struct {
	Command we.CommandName  `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (request commandRequest) remote() we.RemoteCommand {
	return we.RemoteCommand{
		CommandName: request.Command,
		Payload:     we.Data{Encoding: we.JsonEncoding, Data: request.Payload},
	}
}

func (service *httpService[T]) render(w http.ResponseWriter, r *http.Request, entity we.Entity[T]) {
	if !entity.Initialized() && !service.defaults {
		http.NotFound(w, r)
		return
	}

	if err := service.encoder.Encode(w, r, &entity); err != nil {
		service.log.Warn().Err(err).Msg("failed to encode resource")
	}
}

func (service *httpService[T]) getResource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := chi.URLParam(r, "type")
		key := chi.URLParam(r, "key")

		entity, err := service.controller.Load(r.Context(), we.AggregateId{Type: t, Key: key})
		if err != nil {
			service.log.Info().Err(err).Str("type", t).Str("key", key).Msg("failed to load resource")
			Error(w, r, err)
			return
		}

		service.render(w, r, entity)
	}
}

func (service *httpService[T]) executeCommand() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := chi.URLParam(r, "type")
		key := chi.URLParam(r, "key")

		contentType := r.Header.Get("Content-type")
		mediaType, _, err := mime.ParseMediaType(contentType)
		if mediaType != "application/json" || err != nil {
			http.Error(w, "unsupported content type", http.StatusUnsupportedMediaType)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		var request commandRequest
		if err := json.Unmarshal(body, &request); err != nil || request.Command == "" {
			service.log.Info().Err(err).Msg("failed to unmarshal command")
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		entity, err := service.controller.Execute(r.Context(), we.AggregateId{Type: t, Key: key}, request.remote())
		if err != nil {
			service.log.Info().Err(err).Str("command", string(request.Command)).Msg("failed to execute command")
			Error(w, r, err)
			return
		}

		service.render(w, r, entity)
	}
}
