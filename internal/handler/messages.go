package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmorgan81/imagen/internal/image"
	"github.com/dmorgan81/imagen/internal/page"
)

// describe turns a generation failure into the notice shown on the page and
// the status code the page is served with.
func describe(err error) (page.Message, int) {
	var e *image.Error
	if !errors.As(err, &e) {
		return page.Message{
			Level: page.LevelError,
			Text:  "An unexpected error occurred: " + err.Error(),
		}, http.StatusInternalServerError
	}

	switch e.Kind {
	case image.KindValidation:
		return page.Message{Level: page.LevelError, Text: capitalize(e.Msg) + "."}, http.StatusBadRequest
	case image.KindTimeout:
		return page.Message{
			Level: page.LevelError,
			Text:  "The request to the image service took too long and expired. Please try again.",
		}, http.StatusGatewayTimeout
	case image.KindUpstream:
		return page.Message{
			Level:  page.LevelError,
			Text:   fmt.Sprintf("Error contacting the image service (status %d).", e.Status),
			Detail: e.Body,
		}, http.StatusBadGateway
	case image.KindData:
		return page.Message{
			Level:  page.LevelError,
			Text:   "No image data was received from the image service.",
			Detail: e.Body,
		}, http.StatusBadGateway
	default:
		return page.Message{
			Level: page.LevelError,
			Text:  "An unexpected error occurred: " + e.Error(),
		}, http.StatusInternalServerError
	}
}

func warning(w image.Warning) page.Message {
	return page.Message{Level: page.LevelWarning, Text: capitalize(w.Message) + "."}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
