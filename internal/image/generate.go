package image

import "context"

// Request is a single form submission. Zero values of the optional fields
// mean "unset" and are left out of the upstream payload.
type Request struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Size           string
	Count          int
	GuidanceScale  float64
	Steps          int
	Seed           int64
}

type Image struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

// Ext returns the file extension matching the image format.
func (i Image) Ext() string {
	switch i.MimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// Warning reports a result item that was skipped.
type Warning struct {
	Index   int
	Message string
}

type Result struct {
	Model    string
	Images   []Image
	Warnings []Warning
}

type Generator interface {
	Generate(context.Context, Request) (*Result, error)
}
