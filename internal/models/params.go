package models

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const DateLayout = "2006-01-02"

var validate = validator.New()

type Location struct {
	Latitude  float64 `validate:"latitude"`
	Longitude float64 `validate:"longitude"`
	Timezone  string  `validate:"required"`
}

// FetchParams describes one request to the remote weather source
type FetchParams struct {
	Location  Location
	StartDate string `validate:"required,datetime=2006-01-02"`
	EndDate   string `validate:"required,datetime=2006-01-02"`
}

// Validate checks coordinate ranges, date formats and that the range is not inverted
func (p FetchParams) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid fetch params: %w", err)
	}

	start, _ := time.Parse(DateLayout, p.StartDate)
	end, _ := time.Parse(DateLayout, p.EndDate)
	if end.Before(start) {
		return fmt.Errorf("invalid fetch params: end date %s is before start date %s", p.EndDate, p.StartDate)
	}

	return nil
}
