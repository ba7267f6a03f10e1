package optimize

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/imgforge/pkg/transform"
)

// ErrInvalidOptions wraps every option validation failure so the HTTP
// layer can map it to a 4xx response.
var ErrInvalidOptions = errors.New("invalid optimization options")

var validate = validator.New()

// optionRanges mirrors the accepted parameter ranges for validator tags.
type optionRanges struct {
	Width      int `validate:"omitempty,min=1,max=8000"`
	Height     int `validate:"omitempty,min=1,max=8000"`
	Quality    int `validate:"required,min=1,max=100"`
	BlurRadius int `validate:"omitempty,min=1,max=50"`
}

// ValidateOptions checks parameter ranges and the output format. A zero
// Quality is treated as the default before range checking.
func ValidateOptions(opts transform.Options) error {
	if opts.Format != "" {
		if _, err := transform.ParseFormat(string(opts.Format)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
	}

	quality := opts.Quality
	if quality == 0 {
		quality = transform.DefaultQuality
	}

	ranges := optionRanges{
		Width:      opts.Width,
		Height:     opts.Height,
		Quality:    quality,
		BlurRadius: opts.BlurRadius,
	}
	if err := validate.Struct(ranges); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("%w: %s out of range (%s=%s)",
				ErrInvalidOptions, f.Field(), f.Tag(), f.Param())
		}
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}

	return nil
}
