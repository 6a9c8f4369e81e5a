package scheduler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var placeholderRx = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// renderTemplate substitutes {name} placeholders from vars. An unresolved
// placeholder is an error so a misconfigured template falls back to the
// default text instead of leaking braces to attendees.
func renderTemplate(tpl string, vars map[string]string) (string, error) {
	var unknown []string
	out := placeholderRx.ReplaceAllStringFunc(tpl, func(m string) string {
		key := m[1 : len(m)-1]
		if v, ok := vars[key]; ok {
			return v
		}
		unknown = append(unknown, key)
		return m
	})
	if len(unknown) > 0 {
		return "", errors.Errorf("unresolved placeholders: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

// eventText renders the mode's title and description templates for one
// pairing, falling back to neutral defaults when a template cannot render.
func (s *Scheduler) eventText(mode Mode, initiatorName, partnerName, initiatorEmail, partnerEmail string, log zerolog.Logger) (title, description string) {
	vars := map[string]string{
		"person1":     initiatorName,
		"person2":     partnerName,
		"new_starter": initiatorName,
		"buddy":       partnerName,
		"email1":      initiatorEmail,
		"email2":      partnerEmail,
	}

	title, err := renderTemplate(mode.TitleTemplate, vars)
	if err != nil {
		log.Warn().Err(err).Msg("title template failed, using fallback")
		title = fmt.Sprintf("Intro: %s & %s", initiatorName, partnerName)
	}
	description, err = renderTemplate(mode.DescriptionTemplate, vars)
	if err != nil {
		log.Warn().Err(err).Msg("description template failed, using fallback")
		description = fmt.Sprintf("%s ↔ %s", initiatorEmail, partnerEmail)
	}
	return title, description
}
