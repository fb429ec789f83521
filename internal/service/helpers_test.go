package service

import (
	"encoding/json"
	"log/slog"
	"os"

	"go.uber.org/mock/gomock"

	"driftwood/internal/domain"
	"driftwood/internal/service/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func ok(body any) json.RawMessage {
	env := map[string]any{"result": true, "status": 200, "message": "ok"}
	if body != nil {
		env["body"] = body
	}
	data, err := json.Marshal(env)
	if err != nil {
		panic(err)
	}
	return data
}

func failed(status int, message string) json.RawMessage {
	data, err := json.Marshal(map[string]any{"result": false, "status": status, "message": message})
	if err != nil {
		panic(err)
	}
	return data
}

func newTestApp(ctrl *gomock.Controller) (*App, *mocks.MockGateway, *mocks.MockImageChecker) {
	gw := mocks.NewMockGateway(ctrl)
	images := mocks.NewMockImageChecker(ctrl)
	return NewApp(gw, images, testLogger(), true), gw, images
}

var (
	siteAlpha = domain.Site{ID: "a", Name: "alpha", Domain: "alpha.example.com", URL: "https://alpha.example.com"}
	siteBeta  = domain.Site{ID: "b", Name: "Beta", Domain: "beta.example.com", URL: "https://beta.example.com"}
	siteGamma = domain.Site{ID: "c", Name: "gamma", Domain: "gamma.example.com", URL: "https://gamma.example.com"}
)
