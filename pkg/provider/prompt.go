package provider

import (
	"fmt"
	"strings"

	"github.com/menta2k/id-photo/pkg/types"
)

const retouchStep = "Apply professional portrait retouching: smooth the skin naturally, enhance eyes, adjust lighting to be even across the face, and fix minor stray hairs."

// BuildPrompt returns the instruction for background replacement in the
// wording that works best for the provider.
func BuildPrompt(providerName string, bg types.Background, beautify bool) string {
	color := bg.PromptName()
	retouch := ""
	if beautify {
		retouch = retouchStep
	}

	var steps []string
	switch strings.ToLower(providerName) {
	case OpenRouter:
		steps = []string{
			fmt.Sprintf("Change the background to a solid %s color.", color),
			retouch,
			"Center the person and ensure studio-quality lighting.",
			"Return ONLY the modified image as a base64 data URL, no additional text or explanations.",
		}
		return numbered("Please transform this photo into a professional ID photo with the following requirements:", steps)
	case Tongyi:
		steps = []string{
			fmt.Sprintf("Remove the current background and replace it with a perfectly flat, solid %s color.", color),
			retouch,
			"Ensure the person is centered and the lighting is professional studio quality.",
			"Return the modified image in base64 format.",
		}
	default:
		steps = []string{
			fmt.Sprintf("Remove the current background and replace it with a perfectly flat, solid %s color.", color),
			retouch,
			"Ensure the person is centered and the lighting is professional studio quality.",
			"The output must be ONLY the modified image in base64 format without any additional text or explanations.",
		}
	}
	return numbered("Professional ID photo transformation task:", steps)
}

func numbered(title string, steps []string) string {
	var sb strings.Builder
	sb.WriteString(title)
	n := 1
	for _, s := range steps {
		if s == "" {
			continue
		}
		fmt.Fprintf(&sb, "\n%d. %s", n, s)
		n++
	}
	return sb.String()
}
