package api

import (
	"cmp"
	"context"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camwall/internal/api/models"
	"github.com/smazurov/camwall/internal/video"
)

type surfacePath struct {
	SurfaceID string `path:"surface_id" doc:"Surface identifier"`
}

// registerSurfaceRoutes registers surface and stream binding endpoints
func (s *Server) registerSurfaceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-surfaces",
		Method:      http.MethodGet,
		Path:        "/api/surfaces",
		Summary:     "List Surfaces",
		Description: "List every allocated surface and the stream bound to it",
		Tags:        []string{"surfaces"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.SurfaceListResponse, error) {
		surfaces := s.manager.Surfaces()
		slices.SortFunc(surfaces, func(a, b video.Surface) int { return cmp.Compare(a.ID(), b.ID()) })

		out := make([]models.SurfaceData, len(surfaces))
		for i, surface := range surfaces {
			out[i] = s.surfaceData(surface)
		}
		return &models.SurfaceListResponse{
			Body: models.SurfaceListData{Surfaces: out, Count: len(out)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-surface",
		Method:        http.MethodPost,
		Path:          "/api/surfaces",
		Summary:       "Create Surface",
		Description:   "Allocate an empty surface that streams can be bound to",
		Tags:          []string{"surfaces"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{401, 503},
		Security:      withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.SurfaceResponse, error) {
		surface, err := s.manager.CreateStreamRenderer()
		if err != nil {
			return nil, mapStreamError(err)
		}
		return &models.SurfaceResponse{Body: s.surfaceData(surface)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-surface",
		Method:      http.MethodGet,
		Path:        "/api/surfaces/{surface_id}",
		Summary:     "Get Surface",
		Description: "Get a surface's status, frame count and bound stream",
		Tags:        []string{"surfaces"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(_ context.Context, input *surfacePath) (*models.SurfaceResponse, error) {
		surface, err := s.lookupSurface(input.SurfaceID)
		if err != nil {
			return nil, err
		}
		return &models.SurfaceResponse{Body: s.surfaceData(surface)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-surface",
		Method:        http.MethodDelete,
		Path:          "/api/surfaces/{surface_id}",
		Summary:       "Release Surface",
		Description:   "Clear the surface's stream and free the surface",
		Tags:          []string{"surfaces"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 404},
		Security:      withAuth(),
	}, func(_ context.Context, input *surfacePath) (*struct{}, error) {
		surface, err := s.lookupSurface(input.SurfaceID)
		if err != nil {
			return nil, err
		}
		s.manager.ReleaseSurface(surface)
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "request-stream",
		Method:      http.MethodPut,
		Path:        "/api/surfaces/{surface_id}/stream",
		Summary:     "Request Stream",
		Description: "Bind a camera stream to the surface, replacing any stream already there. " +
			"The stream starts connecting in the background; watch its state on the surface or the event stream.",
		Tags:     []string{"surfaces"},
		Errors:   []int{400, 401, 404, 503},
		Security: withAuth(),
	}, func(_ context.Context, input *models.StreamRequest) (*models.StreamResponse, error) {
		surface, err := s.lookupSurface(input.SurfaceID)
		if err != nil {
			return nil, err
		}
		req, err := streamRequest(input.Body)
		if err != nil {
			return nil, mapStreamError(err)
		}
		stream, err := s.manager.RequestStream(req, surface)
		if err != nil {
			return nil, mapStreamError(err)
		}
		return &models.StreamResponse{Body: streamData(stream)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "clear-stream",
		Method:        http.MethodDelete,
		Path:          "/api/surfaces/{surface_id}/stream",
		Summary:       "Clear Stream",
		Description:   "Release the stream bound to the surface, if any",
		Tags:          []string{"surfaces"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 404},
		Security:      withAuth(),
	}, func(_ context.Context, input *surfacePath) (*struct{}, error) {
		surface, err := s.lookupSurface(input.SurfaceID)
		if err != nil {
			return nil, err
		}
		s.manager.ClearStream(surface)
		return &struct{}{}, nil
	})
}

func (s *Server) lookupSurface(id string) (video.Surface, error) {
	surface, ok := s.manager.Surface(id)
	if !ok {
		return nil, huma.Error404NotFound("surface not found: " + id)
	}
	return surface, nil
}

func streamRequest(body models.StreamRequestData) (video.Request, error) {
	size, err := video.ParseSize(body.Size)
	if err != nil {
		return video.Request{}, err
	}
	opts := []video.RequestOption{video.WithSize(size)}
	if body.Width > 0 || body.Height > 0 {
		opts = append(opts, video.WithBounds(body.Width, body.Height))
	}
	for k, v := range body.Properties {
		opts = append(opts, video.WithProperty(k, v))
	}
	return video.NewRequest(body.CameraID, opts...), nil
}

func (s *Server) surfaceData(surface video.Surface) models.SurfaceData {
	data := models.SurfaceData{SurfaceID: surface.ID()}
	if c, ok := surface.(*video.Canvas); ok {
		data.Status = c.Status()
		data.Frames = c.FrameCount()
		data.Updated = c.Updated()
	}
	if stream, ok := s.manager.Bound(surface); ok {
		sd := streamData(stream)
		data.Stream = &sd
	}
	return data
}

func streamData(stream *video.Stream) models.StreamData {
	req := stream.Request()
	data := models.StreamData{
		StreamID:  stream.ID(),
		CameraID:  req.CameraID(),
		Size:      req.Size().String(),
		Transport: stream.Transport(),
		State:     stream.State().String(),
		Status:    stream.Status(),
		Reason:    stream.Reason(),
		Frames:    stream.Frames(),
		UptimeMs:  stream.Uptime().Milliseconds(),
		Created:   stream.Created(),
	}
	if err := stream.Err(); err != nil {
		data.Error = err.Error()
	}
	return data
}
