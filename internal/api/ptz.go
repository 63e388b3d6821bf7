package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camwall/internal/api/models"
	"github.com/smazurov/camwall/internal/ptz"
)

// registerPTZRoutes registers PTZ focus and remote button endpoints
func (s *Server) registerPTZRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-focus",
		Method:      http.MethodGet,
		Path:        "/api/focus",
		Summary:     "Get Focus",
		Description: "Get the camera under PTZ control",
		Tags:        []string{"ptz"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.FocusResponse, error) {
		focus := s.dispatcher.Focus()
		return &models.FocusResponse{Body: models.FocusData{Previous: focus, Current: focus}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-focus",
		Method:      http.MethodPut,
		Path:        "/api/focus",
		Summary:     "Set Focus",
		Description: "Move PTZ control to another camera. Motion held on the previous camera is stopped.",
		Tags:        []string{"ptz"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(_ context.Context, input *models.FocusRequest) (*models.FocusResponse, error) {
		camera := input.Body.CameraID
		if camera != "" && s.directory != nil {
			if _, ok := s.directory.Camera(camera); !ok {
				return nil, huma.Error404NotFound("camera not found: " + camera)
			}
		}
		prev := s.dispatcher.SetFocus(camera)
		return &models.FocusResponse{Body: models.FocusData{Previous: prev, Current: camera}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "joystick-button",
		Method:      http.MethodPost,
		Path:        "/api/joystick/buttons",
		Summary:     "Joystick Button",
		Description: "Dispatch a button press or release from a remote control device to the focused camera",
		Tags:        []string{"ptz"},
		Errors:      []int{401, 502},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.ButtonRequest) (*models.ButtonResponse, error) {
		ev := ptz.ButtonEvent{Button: input.Body.Button, Pressed: input.Body.Pressed}
		if err := s.dispatcher.HandleButton(ctx, ev); err != nil {
			return nil, huma.Error502BadGateway("camera rejected the command", err)
		}
		return &models.ButtonResponse{
			Body: models.ButtonData{
				Focus:   s.dispatcher.Focus(),
				Pressed: s.dispatcher.Pressed(ev.Button),
			},
		}, nil
	})
}
