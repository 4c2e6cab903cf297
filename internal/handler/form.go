package handler

import "github.com/dmorgan81/imagen/internal/image"

// form mirrors the fields posted by the page. It is seeded with the profile
// defaults so that fields a profile does not render keep sane values.
type form struct {
	Prompt         string  `form:"prompt"`
	NegativePrompt string  `form:"negative_prompt"`
	Width          int     `form:"width"`
	Height         int     `form:"height"`
	Size           string  `form:"size"`
	Count          int     `form:"count"`
	GuidanceScale  float64 `form:"guidance_scale"`
	Steps          int     `form:"steps"`
	Seed           int64   `form:"seed"`
}

func newForm(defaults image.Request) form {
	return form(defaults)
}

func (f form) request() image.Request {
	return image.Request(f)
}
