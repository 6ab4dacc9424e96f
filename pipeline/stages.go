package pipeline

import (
	"context"

	"github.com/hexquarry/battle/types"
)

// Direction is one of the three base facings the pipeline renders; the
// remaining three are produced downstream by horizontal mirroring and are
// not pipeline work.
type Direction string

const (
	DirectionEast      Direction = "east"
	DirectionNorthEast Direction = "north-east"
	DirectionSouthEast Direction = "south-east"
)

var baseDirections = []Direction{DirectionEast, DirectionNorthEast, DirectionSouthEast}

// Animation is a single animation clip rendered per direction.
type Animation string

const (
	AnimationWalk   Animation = "walk"
	AnimationIdle   Animation = "idle"
	AnimationAttack Animation = "attack"
)

var animations = []Animation{AnimationWalk, AnimationIdle, AnimationAttack}

// ImageService generates a base sprite from a prompt. Stage 1 external
// collaborator.
type ImageService interface {
	GenerateBase(ctx context.Context, req types.GenerationRequest) ([]byte, error)
}

// VisionService analyzes a rendered sprite. Stage 2 external collaborator.
type VisionService interface {
	Analyze(ctx context.Context, sprite []byte) (map[string]any, error)
}

// AnimatorService rotates and renders directional animation frames.
// Stage 4 external collaborator.
type AnimatorService interface {
	Render(ctx context.Context, baseSprite []byte, dir Direction, anim Animation) ([]byte, error)
}

// Stages bundles the three external collaborators a pipeline attempt
// calls through, in order. An attempt aborts at the first failing call
// per the error taxonomy.
type Stages struct {
	Image    ImageService
	Vision   VisionService
	Animator AnimatorService
}

// progressFn reports a progress update after a stage boundary. Reports
// never decrease within an attempt.
type progressFn func(ctx context.Context, percent int)

// Run executes the five pipeline stages for req and returns the finished
// result. progress is invoked after each stage boundary with the
// approximate completion percentages for each stage boundary.
func (s Stages) Run(ctx context.Context, req types.GenerationRequest, progress progressFn) (*types.JobResult, error) {
	base, err := s.Image.GenerateBase(ctx, req)
	if err != nil {
		return nil, WrapStageError(err, "generate")
	}
	progress(ctx, 25)

	analysis, err := s.Vision.Analyze(ctx, base)
	if err != nil {
		return nil, WrapStageError(err, "analyze")
	}
	progress(ctx, 40)

	attributes := mapAnalysisToAttributes(analysis)
	progress(ctx, 55)

	sprites := make(map[string][]byte, len(baseDirections)*len(animations))
	total := len(baseDirections) * len(animations)
	done := 0
	for _, dir := range baseDirections {
		for _, anim := range animations {
			frame, err := s.Animator.Render(ctx, base, dir, anim)
			if err != nil {
				return nil, WrapStageError(err, "animate")
			}
			sprites[string(dir)+"/"+string(anim)] = frame
			done++
			progress(ctx, 70+int(float64(done)/float64(total)*20))
		}
	}

	result := &types.JobResult{Sprites: sprites, Attributes: attributes}
	progress(ctx, 100)
	return result, nil
}

// mapAnalysisToAttributes maps a vision analysis payload onto combat
// attributes. Unknown/missing fields are simply omitted; the worker does
// not fail a job over an incomplete attribute set.
func mapAnalysisToAttributes(analysis map[string]any) map[string]any {
	attrs := make(map[string]any, len(analysis))
	for k, v := range analysis {
		attrs[k] = v
	}
	return attrs
}
