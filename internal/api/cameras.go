package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camwall/internal/api/models"
	"github.com/smazurov/camwall/internal/directory"
	"github.com/smazurov/camwall/internal/video"
)

// registerCameraRoutes registers camera directory endpoints
func (s *Server) registerCameraRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-cameras",
		Method:      http.MethodGet,
		Path:        "/api/cameras",
		Summary:     "List Cameras",
		Description: "List the camera directory in selection order",
		Tags:        []string{"cameras"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.CameraListResponse, error) {
		focus := ""
		if s.dispatcher != nil {
			focus = s.dispatcher.Focus()
		}

		cameras := s.directory.Cameras()
		out := make([]models.CameraData, len(cameras))
		for i, cam := range cameras {
			out[i] = cameraData(cam, focus)
		}
		return &models.CameraListResponse{
			Body: models.CameraListData{Cameras: out, Count: len(out)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-camera-sources",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{camera_id}/sources",
		Summary:     "List Camera Sources",
		Description: "Expand every source template of the camera and show which one a stream request would use",
		Tags:        []string{"cameras"},
		Errors:      []int{400, 401, 404},
		Security:    withAuth(),
	}, func(_ context.Context, input *struct {
		CameraID string `path:"camera_id" example:"CAM-101" doc:"Camera identifier"`
		Size     string `query:"size" example:"m" doc:"Resolution hint"`
	}) (*models.SourceListResponse, error) {
		size, err := video.ParseSize(input.Size)
		if err != nil {
			return nil, mapStreamError(err)
		}
		candidates, ok := s.directory.Sources(video.NewRequest(input.CameraID, video.WithSize(size)), s.manager.Transport().Accepts)
		if !ok {
			return nil, huma.Error404NotFound("camera not found: " + input.CameraID)
		}

		data := models.SourceListData{CameraID: input.CameraID, Sources: make([]models.SourceData, len(candidates))}
		for i, c := range candidates {
			data.Sources[i] = models.SourceData{
				Template: c.Template,
				Label:    c.Label,
				Source:   c.Source,
				Accepted: c.Accepted,
				Skipped:  c.Skipped,
			}
			if c.Accepted && data.Selected == "" {
				data.Selected = c.Source
			}
		}
		return &models.SourceListResponse{Body: data}, nil
	})
}

func cameraData(cam directory.Camera, focus string) models.CameraData {
	return models.CameraData{
		CameraID: cam.ID,
		Name:     cam.DisplayName(),
		Encoder:  cam.Encoder,
		Address:  cam.Address,
		Channel:  cam.Channel,
		PTZ:      cam.PTZ != "",
		Focused:  cam.ID == focus,
	}
}
