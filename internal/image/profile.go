package image

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

const (
	MinDimension  = 256
	MaxDimension  = 1024
	DimensionStep = 64
	MaxCount      = 4
	MinGuidance   = 1.0
	MaxGuidance   = 20.0
	MinSteps      = 10
	MaxSteps      = 50
	MaxSeed       = 999999999

	responseFormat = "b64_json"
)

// Profile ties an upstream model to the parameters it accepts. A profile
// with Sizes only takes one of those sizes and none of the advanced fields.
type Profile struct {
	Name     string
	Model    string
	Sizes    []string
	Defaults Request
}

var profiles = map[string]Profile{
	"general": {
		Name:  "general",
		Model: "stability-ai/stable-diffusion-3-medium",
		Defaults: Request{
			Width:         512,
			Height:        512,
			Count:         1,
			GuidanceScale: 7.0,
			Steps:         25,
		},
	},
	"fixed": {
		Name:  "fixed",
		Model: "openai/dall-e-2",
		Sizes: []string{"256x256", "512x512", "1024x1024"},
		Defaults: Request{
			Size:  "512x512",
			Count: 1,
		},
	},
}

func LookupProfile(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown model profile %q (have %s)",
			name, strings.Join(ProfileNames(), ", "))
	}
	return p, nil
}

func ProfileNames() []string {
	names := lo.Keys(profiles)
	sort.Strings(names)
	return names
}

// Advanced reports whether the profile accepts negative prompts, free
// dimensions, guidance, steps and seed.
func (p Profile) Advanced() bool {
	return len(p.Sizes) == 0
}

func (p Profile) Validate(req Request) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return validationError("please enter a description of the image")
	}
	if req.Count < 1 || req.Count > MaxCount {
		return validationError("number of images must be between 1 and %d", MaxCount)
	}

	if !p.Advanced() {
		if !lo.Contains(p.Sizes, req.Size) {
			return validationError("size must be one of %s", strings.Join(p.Sizes, ", "))
		}
		return nil
	}

	for _, d := range []struct {
		name  string
		value int
	}{{"width", req.Width}, {"height", req.Height}} {
		if d.value < MinDimension || d.value > MaxDimension || d.value%DimensionStep != 0 {
			return validationError("%s must be a multiple of %d between %d and %d",
				d.name, DimensionStep, MinDimension, MaxDimension)
		}
	}
	if req.GuidanceScale != 0 && (req.GuidanceScale < MinGuidance || req.GuidanceScale > MaxGuidance) {
		return validationError("guidance scale must be between %.1f and %.1f", MinGuidance, MaxGuidance)
	}
	if req.Steps != 0 && (req.Steps < MinSteps || req.Steps > MaxSteps) {
		return validationError("steps must be between %d and %d", MinSteps, MaxSteps)
	}
	if req.Seed < 0 || req.Seed > MaxSeed {
		return validationError("seed must be between 0 and %d", MaxSeed)
	}
	return nil
}

type payload struct {
	Model          string  `json:"model"`
	Prompt         string  `json:"prompt"`
	N              int     `json:"n"`
	Size           string  `json:"size"`
	ResponseFormat string  `json:"response_format"`
	Seed           int64   `json:"seed,omitempty"`
	GuidanceScale  float64 `json:"guidance_scale,omitempty"`
	Steps          int     `json:"steps,omitempty"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
}

// payload shapes req for the upstream API. Unset optional values are zero
// and dropped by omitempty.
func (p Profile) payload(req Request) payload {
	out := payload{
		Model:          p.Model,
		Prompt:         strings.TrimSpace(req.Prompt),
		N:              req.Count,
		Size:           req.Size,
		ResponseFormat: responseFormat,
	}
	if !p.Advanced() {
		return out
	}

	out.Size = fmt.Sprintf("%dx%d", req.Width, req.Height)
	out.Seed = req.Seed
	out.GuidanceScale = req.GuidanceScale
	out.Steps = req.Steps
	out.NegativePrompt = strings.TrimSpace(req.NegativePrompt)
	return out
}
