package tui

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"
	"nathanbeddoewebdev/dialctl/internal/perf/dtmf"

	"github.com/charmbracelet/huh"
)

// ErrDtmfEditAborted is returned when the operator leaves the DTMF editor
// without saving.
var ErrDtmfEditAborted = errors.New("DTMF edit aborted by user")

// SelectDtmfCountry asks the operator to pick one of countries. Countries
// for which customized returns true are labelled.
func SelectDtmfCountry(countries []string, customized func(string) bool) (string, error) {
	if len(countries) == 0 {
		return "", fmt.Errorf("no DTMF countries available")
	}

	options := make([]huh.Option[string], 0, len(countries))
	for _, c := range countries {
		label := strings.ToUpper(c)
		if customized != nil && customized(c) {
			label += " (customized)"
		}
		options = append(options, huh.NewOption(label, c))
	}

	var selected string
	field := huh.NewSelect[string]().
		Title("Select country").
		Options(options...).
		Value(&selected).
		Height(min(max(len(options), 5), 12))

	if err := runDtmfForm(huh.NewGroup(field)); err != nil {
		return "", err
	}
	return selected, nil
}

// DtmfEditForm lets the operator edit current field by field. def is shown
// for reference. The returned config has passed dtmf.Validate.
func DtmfEditForm(current, def domain.DtmfCountryConfig) (domain.DtmfCountryConfig, error) {
	cfg := current
	timeout := strconv.Itoa(current.MenuTimeout)
	country := strings.ToUpper(current.Country)

	keyField := huh.NewInput().
		Title("DTMF key").
		Description("Single digit the caller presses").
		CharLimit(1).
		Value(&cfg.DtmfKey).
		Validate(func(s string) error {
			return fieldError(domain.DtmfCountryConfig{Country: country, DtmfKey: s, MenuTimeout: dtmf.MinMenuTimeout}, "dtmf_key")
		})

	messageField := huh.NewText().
		Title("Message").
		Value(&cfg.Message).
		Lines(3)

	timeoutField := huh.NewInput().
		Title("Menu timeout (seconds)").
		Description(fmt.Sprintf("Between %d and %d", dtmf.MinMenuTimeout, dtmf.MaxMenuTimeout)).
		Value(&timeout).
		Validate(func(s string) error {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return fmt.Errorf("must be a whole number")
			}
			return fieldError(domain.DtmfCountryConfig{Country: country, DtmfKey: "1", MenuTimeout: n}, "menu_timeout")
		})

	languageField := huh.NewInput().
		Title("Language").
		Placeholder("en-US").
		Value(&cfg.Language)

	instructionsField := huh.NewText().
		Title("Agent instructions").
		Value(&cfg.Instructions).
		Lines(3)

	defaultNote := huh.NewNote().
		Title("Default for " + country).
		Description(describeDtmf(def))

	save := false
	confirmField := huh.NewConfirm().
		Title(fmt.Sprintf("Save DTMF menu for %s?", country)).
		Affirmative("Save").
		Negative("Cancel").
		Value(&save)

	err := runDtmfForm(
		huh.NewGroup(keyField, messageField, timeoutField, languageField, instructionsField),
		huh.NewGroup(defaultNote, confirmField),
	)
	if err != nil {
		return domain.DtmfCountryConfig{}, err
	}
	if !save {
		return domain.DtmfCountryConfig{}, ErrDtmfEditAborted
	}

	cfg.MenuTimeout, _ = strconv.Atoi(strings.TrimSpace(timeout))
	cfg.Message = strings.TrimSpace(cfg.Message)
	cfg.Language = strings.TrimSpace(cfg.Language)
	cfg.Instructions = strings.TrimSpace(cfg.Instructions)
	if err := dtmf.Validate(cfg); err != nil {
		return domain.DtmfCountryConfig{}, err
	}
	return cfg, nil
}

func runDtmfForm(groups ...*huh.Group) error {
	err := huh.NewForm(groups...).
		WithAccessible(os.Getenv("ACCESSIBLE") != "").
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrDtmfEditAborted
	}
	return err
}

// fieldError returns the validation message for field only, so each input
// reports its own problem.
func fieldError(cfg domain.DtmfCountryConfig, field string) error {
	var ve *domain.ValidationError
	if err := dtmf.Validate(cfg); errors.As(err, &ve) {
		for _, v := range ve.Violations {
			if v.Field == field {
				return errors.New(v.Message)
			}
		}
	}
	return nil
}

func describeDtmf(cfg domain.DtmfCountryConfig) string {
	if cfg.Country == "" {
		return "No built-in default."
	}
	return fmt.Sprintf("Key %s, %ds timeout, %s\n%s", cfg.DtmfKey, cfg.MenuTimeout, cfg.Language, cfg.Message)
}
