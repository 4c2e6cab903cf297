package image

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

type response struct {
	Data []struct {
		B64JSON *string `json:"b64_json"`
	} `json:"data"`
}

// decodeResponse turns a 200 body into images. Items without b64_json are
// skipped with a warning; anything else that fails to decode fails the call.
func decodeResponse(body []byte) (*Result, error) {
	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Kind: KindUnexpected, Msg: "parse response", Body: string(body), Err: err}
	}
	if len(resp.Data) == 0 {
		return nil, &Error{Kind: KindData, Msg: "no image data received", Body: string(body)}
	}

	result := &Result{}
	for i, item := range resp.Data {
		if item.B64JSON == nil {
			result.Warnings = append(result.Warnings, Warning{
				Index:   i,
				Message: fmt.Sprintf("image %d was not returned as b64_json", i+1),
			})
			continue
		}

		img, err := Decode(*item.B64JSON)
		if err != nil {
			return nil, &Error{Kind: KindUnexpected, Msg: fmt.Sprintf("decode image %d", i+1), Err: err}
		}
		result.Images = append(result.Images, img)
	}
	return result, nil
}

// Decode reads a base64 encoded image. The returned Data is the exact
// decoded byte stream; the image is only inspected, never re-encoded.
func Decode(b64 string) (Image, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return Image{}, fmt.Errorf("base64: %w", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("image: %w", err)
	}

	return Image{
		Data:     data,
		MimeType: "image/" + format,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}
