package config

import (
	"fmt"

	"kmcsim/internal/model"
)

var agentTypeByName = map[string]model.AgentType{
	"ordinary": model.AgentTypeOrdinary,
	"celebrity": model.AgentTypeCelebrity,
	"bot":       model.AgentTypeBot,
}

var regionByName = map[string]model.Region{
	"north_america": model.RegionNorthAmerica,
	"south_america": model.RegionSouthAmerica,
	"europe":        model.RegionEurope,
	"africa":        model.RegionAfrica,
	"asia":          model.RegionAsia,
	"oceania":       model.RegionOceania,
}

var languageByName = map[string]model.Language{
	"english":  model.LanguageEnglish,
	"spanish":  model.LanguageSpanish,
	"mandarin": model.LanguageMandarin,
	"arabic":   model.LanguageArabic,
	"hindi":    model.LanguageHindi,
	"french":   model.LanguageFrench,
}

var ideologyByName = map[string]model.Ideology{
	"left":         model.IdeologyLeft,
	"center_left":  model.IdeologyCenterLeft,
	"center":       model.IdeologyCenter,
	"center_right": model.IdeologyCenterRight,
	"right":        model.IdeologyRight,
}

var preferenceClassByName = map[string]model.PreferenceClass{
	"open_minded": model.PreferenceOpenMinded,
	"moderate":    model.PreferenceModerate,
	"partisan":    model.PreferencePartisan,
}

var contentTypeByName = map[string]model.ContentType{
	"plain":       model.ContentPlain,
	"ideological": model.ContentIdeological,
	"musical":     model.ContentMusical,
	"humorous":    model.ContentHumorous,
}

func parseAgentType(name string) (model.AgentType, error) {
	t, ok := agentTypeByName[name]
	if !ok {
		return 0, fmt.Errorf("unrecognized agent type %q", name)
	}
	return t, nil
}

func parseRegion(name string) (model.Region, error) {
	r, ok := regionByName[name]
	if !ok {
		return 0, fmt.Errorf("unrecognized region %q", name)
	}
	return r, nil
}

func parseLanguage(name string) (model.Language, error) {
	l, ok := languageByName[name]
	if !ok {
		return 0, fmt.Errorf("unrecognized language %q", name)
	}
	return l, nil
}

func parseIdeology(name string) (model.Ideology, error) {
	i, ok := ideologyByName[name]
	if !ok {
		return 0, fmt.Errorf("unrecognized ideology %q", name)
	}
	return i, nil
}

func parsePreferenceClass(name string) (model.PreferenceClass, error) {
	p, ok := preferenceClassByName[name]
	if !ok {
		return 0, fmt.Errorf("unrecognized preference class %q", name)
	}
	return p, nil
}

func parseContentType(name string) (model.ContentType, error) {
	c, ok := contentTypeByName[name]
	if !ok {
		return 0, fmt.Errorf("unrecognized content type %q", name)
	}
	return c, nil
}
