package job

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/weegigs/wee-streams-go/connectors/wehttp"
	"github.com/weegigs/wee-streams-go/we"
)

type outcome struct {
	Result string `json:"result"`
	Reason string `json:"reason"`
}

func decode[T any](r *http.Request) (T, error) {
	var body T
	if r.Body == nil || r.ContentLength == 0 {
		return body, nil
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return body, errors.Wrap(wehttp.ErrBadRequest, err.Error())
	}

	return body, nil
}

// NewHandler serves the job API: POST / queues a job, GET /{id} reads one and
// POST /{id}/{start,complete,fail,read} move it along its lifecycle.
func NewHandler(service *Service, logger *zerolog.Logger) http.Handler {
	return wehttp.NewHandler[Job](
		service.Store(),
		wehttp.Logger[Job](logger),
		wehttp.WithCreate[Job](func(ctx context.Context, r *http.Request) (we.Snapshot[Job], error) {
			request, err := decode[Request](r)
			if err != nil {
				return we.Snapshot[Job]{}, err
			}
			if request.Type == "" {
				return we.Snapshot[Job]{}, errors.Wrap(wehttp.ErrBadRequest, "job type is required")
			}
			return service.Queue(ctx, request)
		}),
		wehttp.WithCommand[Job]("start", func(ctx context.Context, id string, expected *int64, _ *http.Request) (we.Snapshot[Job], error) {
			return service.Start(ctx, id, expected)
		}),
		wehttp.WithCommand[Job]("complete", func(ctx context.Context, id string, expected *int64, r *http.Request) (we.Snapshot[Job], error) {
			body, err := decode[outcome](r)
			if err != nil {
				return we.Snapshot[Job]{}, err
			}
			return service.Complete(ctx, id, body.Result, expected)
		}),
		wehttp.WithCommand[Job]("fail", func(ctx context.Context, id string, expected *int64, r *http.Request) (we.Snapshot[Job], error) {
			body, err := decode[outcome](r)
			if err != nil {
				return we.Snapshot[Job]{}, err
			}
			return service.Fail(ctx, id, body.Reason, expected)
		}),
		wehttp.WithCommand[Job]("read", func(ctx context.Context, id string, _ *int64, _ *http.Request) (we.Snapshot[Job], error) {
			return service.MarkResultRead(ctx, id)
		}),
	)
}
