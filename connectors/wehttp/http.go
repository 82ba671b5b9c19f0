package wehttp

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/weegigs/wee-streams-go/we"
)

// Finder loads the current snapshot of an aggregate, nil when it does not
// exist. *we.Store satisfies it.
type Finder[S any] interface {
	Find(ctx context.Context, id string) (*we.Snapshot[S], error)
}

// Command executes a command against the aggregate named in the path.
// Expected is the version sent in If-Match, nil without the header.
type Command[S any] func(ctx context.Context, id string, expected *int64, r *http.Request) (we.Snapshot[S], error)

type HandlerOption[S any] func(service *httpService[S])

func Logger[S any](log *zerolog.Logger) HandlerOption[S] {
	return func(service *httpService[S]) {
		service.log = log
	}
}

// WithCommand routes POST /{id}/{name} to command.
func WithCommand[S any](name string, command Command[S]) HandlerOption[S] {
	return func(service *httpService[S]) {
		service.commands[name] = command
	}
}

// Create executes a command that creates a new aggregate.
type Create[S any] func(ctx context.Context, r *http.Request) (we.Snapshot[S], error)

// WithCreate routes POST / to create.
func WithCreate[S any](create Create[S]) HandlerOption[S] {
	return func(service *httpService[S]) {
		service.create = create
	}
}

// NewHandler serves the snapshots found by finder at GET /{id} and the
// registered commands at POST /{id}/{command}.
func NewHandler[S any](finder Finder[S], options ...HandlerOption[S]) http.Handler {
	service := &httpService[S]{finder: finder, commands: map[string]Command[S]{}}
	for _, option := range options {
		option(service)
	}
	if service.log == nil {
		service.log = &log.Logger
	}

	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(UserHeader)

	if service.create != nil {
		r.Method("POST", "/", service.createResource())
	}
	r.Method("GET", "/{id}", service.getResource())
	r.Method("POST", "/{id}/{command}", service.executeCommand())

	return Traced(r, "we-http")
}

type httpService[S any] struct {
	log      *zerolog.Logger
	finder   Finder[S]
	commands map[string]Command[S]
	create   Create[S]
}

type resource[S any] struct {
	ID      string                 `json:"id"`
	Version int64                  `json:"version"`
	Root    we.AggregateIdentifier `json:"root"`
	Audit   we.Audit               `json:"audit"`
	State   S                      `json:"state"`
}

func (resource[S]) Render(http.ResponseWriter, *http.Request) error {
	return nil
}

func (service *httpService[S]) encode(w http.ResponseWriter, r *http.Request, snapshot we.Snapshot[S]) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(snapshot.Version(), 10)))
	if err := render.Render(w, r, resource[S]{
		ID:      snapshot.Identifier.ID,
		Version: snapshot.Version(),
		Root:    snapshot.RootContext(),
		Audit:   snapshot.Audit,
		State:   snapshot.State,
	}); err != nil {
		service.log.Info().Err(err).Msg("failed to render resource")
	}
}

func (service *httpService[S]) getResource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		snapshot, err := service.finder.Find(r.Context(), id)
		if err != nil {
			service.log.Info().Err(err).Str("id", id).Msg("failed to load resource")
			http.Error(w, "failed to load resource", http.StatusInternalServerError)
			return
		}

		if snapshot == nil {
			http.NotFound(w, r)
			return
		}

		service.encode(w, r, *snapshot)
	}
}

func (service *httpService[S]) fail(w http.ResponseWriter, err error, event *zerolog.Event) {
	status := StatusOf(err)
	event.Err(err).Int("status", status).Msg("failed to execute command")
	http.Error(w, http.StatusText(status), status)
}

func (service *httpService[S]) createResource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := service.create(r.Context(), r)
		if err != nil {
			service.fail(w, err, service.log.Info())
			return
		}

		render.Status(r, http.StatusCreated)
		service.encode(w, r, snapshot)
	}
}

func (service *httpService[S]) executeCommand() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		name := chi.URLParam(r, "command")

		command, ok := service.commands[name]
		if !ok {
			http.NotFound(w, r)
			return
		}

		expected, err := IfMatch(r)
		if err != nil {
			http.Error(w, "invalid If-Match header", http.StatusBadRequest)
			return
		}

		snapshot, err := command(r.Context(), id, expected, r)
		if err != nil {
			service.fail(w, err, service.log.Info().Str("id", id).Str("command", name))
			return
		}

		service.encode(w, r, snapshot)
	}
}

// UserHeader runs requests on behalf of the user named in X-User.
func UserHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := strings.TrimSpace(r.Header.Get("X-User")); user != "" {
			r = r.WithContext(we.WithUser(r.Context(), we.UserID(user)))
		}

		next.ServeHTTP(w, r)
	})
}

// IfMatch reads the expected aggregate version from the If-Match header.
func IfMatch(r *http.Request) (*int64, error) {
	header := strings.TrimSpace(r.Header.Get("If-Match"))
	if header == "" {
		return nil, nil
	}

	if unquoted, err := strconv.Unquote(header); err == nil {
		header = unquoted
	}

	version, err := strconv.ParseInt(header, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid version %q", header)
	}

	return &version, nil
}

// ErrBadRequest marks errors caused by a malformed request.
var ErrBadRequest = errors.New("bad-request")

// StatusOf maps runtime errors onto HTTP status codes.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, we.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, we.ErrConcurrencyConflict):
		return http.StatusPreconditionFailed
	case errors.Is(err, we.ErrInvalidStateTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
